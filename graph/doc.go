// Package graph defines the entity vocabulary and the directed graph container
// exchanged between the plugin host and its plugins.
//
// # Nodes
//
// A Node is one of a closed set of OSINT entities:
//
//   - SocialMedia{NetworkURL, AccountURL}
//   - Website{URL}
//   - IP{Addr}
//   - PhoneNumber, EmailAddress, Person, Organization, Domain (strings)
//   - DNSEntry{Nameserver, Record}
//
// DNS records are likewise a closed set: A, AAAA, CNAME, MX, SRV and TXT.
// Constructing a node never fails and performs no validation. Every variant is
// a comparable value type, so == is structural equality and nodes can be used
// as map keys.
//
// # Graphs
//
// Graph is an adjacency-list directed graph. AddNode and AddEdge append in
// amortized constant time and never invalidate earlier indices. Indices are
// only meaningful within the graph that issued them: fragments returned by a
// plugin are merged with Merge, which re-maps every index.
//
//	g := graph.New()
//	john := g.AddNode(graph.Person("John Doe"))
//	phone := g.AddNode(graph.PhoneNumber("+00000000000"))
//	if _, err := g.AddEdge(john, phone, ""); err != nil {
//	    return err
//	}
package graph
