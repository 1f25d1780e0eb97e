package main

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/miampf/schnuffel/graph"
)

// parseNode reads a node given as Kind=value. SocialMedia takes
// network_url,account_url; DNSEntry cannot be given on the command line.
func parseNode(s string) (graph.Node, error) {
	kind, value, ok := strings.Cut(s, "=")
	if !ok {
		return nil, fmt.Errorf("node %q: want Kind=value", s)
	}
	kind, value = strings.TrimSpace(kind), strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("node %q: empty value", s)
	}

	switch graph.Kind(kind) {
	case graph.KindPerson:
		return graph.Person(value), nil
	case graph.KindOrganization:
		return graph.Organization(value), nil
	case graph.KindDomain:
		return graph.Domain(value), nil
	case graph.KindEmailAddress:
		return graph.EmailAddress(value), nil
	case graph.KindPhoneNumber:
		return graph.PhoneNumber(value), nil
	case graph.KindWebsite:
		return graph.Website{URL: value}, nil
	case graph.KindIP:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", s, err)
		}
		return graph.NewIP(addr), nil
	case graph.KindSocialMedia:
		network, account, ok := strings.Cut(value, ",")
		if !ok {
			return nil, fmt.Errorf("node %q: want SocialMedia=network_url,account_url", s)
		}
		return graph.SocialMedia{NetworkURL: strings.TrimSpace(network), AccountURL: strings.TrimSpace(account)}, nil
	case graph.KindDNSEntry:
		return nil, fmt.Errorf("node %q: DNSEntry nodes cannot be given on the command line", s)
	default:
		return nil, fmt.Errorf("node %q: unknown kind %q", s, kind)
	}
}

// parseSettings reads key=value pairs.
func parseSettings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("setting %q: want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
