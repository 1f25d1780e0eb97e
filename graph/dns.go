package graph

import (
	"fmt"
	"net/netip"
)

// RecordType is the stable tag identifying a DNSRecord variant.
type RecordType string

// DNS record types.
const (
	RecordA     RecordType = "A"
	RecordAAAA  RecordType = "AAAA"
	RecordCNAME RecordType = "CNAME"
	RecordMX    RecordType = "MX"
	RecordSRV   RecordType = "SRV"
	RecordTXT   RecordType = "TXT"
)

// DNSRecord is the payload of a DNSEntry. Like Node, the set of
// implementations is closed and every variant is a comparable value.
type DNSRecord interface {
	Type() RecordType
	String() string
	record()
}

// A maps a name to an IPv4 address.
type A struct {
	Addr netip.Addr
}

// AAAA maps a name to an IPv6 address.
type AAAA struct {
	Addr netip.Addr
}

// CNAME aliases From to the canonical domain To.
type CNAME struct {
	From string
	To   Domain
}

// MX names a mail exchanger.
type MX struct {
	Exchange Domain
}

// SRV locates a service.
type SRV struct {
	Service  string
	Protocol string
	From     string
	To       string
	ToPort   uint16
}

// TXT holds free-form text.
type TXT struct {
	Text string
}

func (A) Type() RecordType     { return RecordA }
func (AAAA) Type() RecordType  { return RecordAAAA }
func (CNAME) Type() RecordType { return RecordCNAME }
func (MX) Type() RecordType    { return RecordMX }
func (SRV) Type() RecordType   { return RecordSRV }
func (TXT) Type() RecordType   { return RecordTXT }

func (r A) String() string     { return "A " + addrString(r.Addr) }
func (r AAAA) String() string  { return "AAAA " + addrString(r.Addr) }
func (r CNAME) String() string { return fmt.Sprintf("CNAME %s -> %s", r.From, r.To) }
func (r MX) String() string    { return "MX " + string(r.Exchange) }
func (r TXT) String() string   { return "TXT " + r.Text }

func (r SRV) String() string {
	return fmt.Sprintf("SRV _%s._%s.%s -> %s:%d", r.Service, r.Protocol, r.From, r.To, r.ToPort)
}

func (A) record()     {}
func (AAAA) record()  {}
func (CNAME) record() {}
func (MX) record()    {}
func (SRV) record()   {}
func (TXT) record()   {}
