package graph

import (
	"fmt"
	"net/netip"
)

// Kind is the stable tag identifying a Node variant. Tags are names rather
// than positions, so adding a variant never changes the tag of another.
type Kind string

// Node kinds.
const (
	KindSocialMedia  Kind = "SocialMedia"
	KindWebsite      Kind = "Website"
	KindIP           Kind = "IP"
	KindPhoneNumber  Kind = "PhoneNumber"
	KindEmailAddress Kind = "EmailAddress"
	KindPerson       Kind = "Person"
	KindOrganization Kind = "Organization"
	KindDomain       Kind = "Domain"
	KindDNSEntry     Kind = "DNSEntry"
)

// Kinds lists every node kind in declaration order.
var Kinds = []Kind{
	KindSocialMedia,
	KindWebsite,
	KindIP,
	KindPhoneNumber,
	KindEmailAddress,
	KindPerson,
	KindOrganization,
	KindDomain,
	KindDNSEntry,
}

// Node is an OSINT entity stored as a graph vertex.
//
// The set of implementations is closed: every variant is a comparable value
// type declared in this package, so two nodes are equal exactly when == says
// so. Nodes never reference each other.
type Node interface {
	// Kind returns the variant tag.
	Kind() Kind

	// String returns a short human-readable label.
	String() string

	node()
}

// SocialMedia is an account on a social network.
type SocialMedia struct {
	NetworkURL string
	AccountURL string
}

// Website is a web site identified by its URL.
type Website struct {
	URL string
}

// IP is an IPv4 or IPv6 address.
type IP struct {
	Addr netip.Addr
}

// PhoneNumber is a phone number. It is not validated.
type PhoneNumber string

// EmailAddress is an e-mail address. It is not validated.
type EmailAddress string

// Person is a natural person identified by name.
type Person string

// Organization is an organization identified by name.
type Organization string

// Domain is a DNS domain name. It is not validated.
type Domain string

// DNSEntry is a record served by a nameserver.
type DNSEntry struct {
	Nameserver Domain
	Record     DNSRecord
}

func (SocialMedia) Kind() Kind  { return KindSocialMedia }
func (Website) Kind() Kind      { return KindWebsite }
func (IP) Kind() Kind           { return KindIP }
func (PhoneNumber) Kind() Kind  { return KindPhoneNumber }
func (EmailAddress) Kind() Kind { return KindEmailAddress }
func (Person) Kind() Kind       { return KindPerson }
func (Organization) Kind() Kind { return KindOrganization }
func (Domain) Kind() Kind       { return KindDomain }
func (DNSEntry) Kind() Kind     { return KindDNSEntry }

func (n SocialMedia) String() string  { return n.AccountURL }
func (n Website) String() string      { return n.URL }
func (n IP) String() string           { return addrString(n.Addr) }
func (n PhoneNumber) String() string  { return string(n) }
func (n EmailAddress) String() string { return string(n) }
func (n Person) String() string       { return string(n) }
func (n Organization) String() string { return string(n) }
func (n Domain) String() string       { return string(n) }

func (n DNSEntry) String() string {
	if n.Record == nil {
		return fmt.Sprintf("%s: <nil>", n.Nameserver)
	}
	return fmt.Sprintf("%s: %s", n.Nameserver, n.Record)
}

func (SocialMedia) node()  {}
func (Website) node()      {}
func (IP) node()           {}
func (PhoneNumber) node()  {}
func (EmailAddress) node() {}
func (Person) node()       {}
func (Organization) node() {}
func (Domain) node()       {}
func (DNSEntry) node()     {}

// NewIP wraps addr as an IP node.
func NewIP(addr netip.Addr) IP {
	return IP{Addr: addr}
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
