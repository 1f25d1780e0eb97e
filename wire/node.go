package wire

import (
	"net/netip"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/miampf/schnuffel/graph"
)

// EncodeNode encodes a single node as a one-entry map {kind: payload}.
func EncodeNode(n graph.Node) ([]byte, error) {
	return marshal("wire.EncodeNode", func(enc *msgpack.Encoder) error {
		return encodeNode(enc, n)
	})
}

// DecodeNode decodes bytes produced by EncodeNode.
func DecodeNode(b []byte) (graph.Node, error) {
	var n graph.Node
	err := unmarshal("wire.DecodeNode", b, func(dec *msgpack.Decoder) error {
		var err error
		n, err = decodeNode(dec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func encodeNode(enc *msgpack.Encoder, n graph.Node) error {
	if n == nil {
		return unsupported("nil node")
	}
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString(string(n.Kind())); err != nil {
		return err
	}

	switch v := n.(type) {
	case graph.SocialMedia:
		return encodeStringFields(enc, "network_url", v.NetworkURL, "account_url", v.AccountURL)
	case graph.Website:
		return encodeStringFields(enc, "url", v.URL)
	case graph.IP:
		return enc.EncodeString(addrText(v.Addr))
	case graph.PhoneNumber:
		return enc.EncodeString(string(v))
	case graph.EmailAddress:
		return enc.EncodeString(string(v))
	case graph.Person:
		return enc.EncodeString(string(v))
	case graph.Organization:
		return enc.EncodeString(string(v))
	case graph.Domain:
		return enc.EncodeString(string(v))
	case graph.DNSEntry:
		if err := enc.EncodeMapLen(2); err != nil {
			return err
		}
		if err := enc.EncodeString("nameserver"); err != nil {
			return err
		}
		if err := enc.EncodeString(string(v.Nameserver)); err != nil {
			return err
		}
		if err := enc.EncodeString("record"); err != nil {
			return err
		}
		return encodeRecord(enc, v.Record)
	default:
		return unsupported("node type %T", n)
	}
}

func decodeNode(dec *msgpack.Decoder) (graph.Node, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, malformed("node must be a single-entry map, got %d entries", n)
	}
	kind, err := dec.DecodeString()
	if err != nil {
		return nil, err
	}

	switch graph.Kind(kind) {
	case graph.KindSocialMedia:
		f, err := decodeStringFields(dec, "network_url", "account_url")
		if err != nil {
			return nil, err
		}
		return graph.SocialMedia{NetworkURL: f["network_url"], AccountURL: f["account_url"]}, nil
	case graph.KindWebsite:
		f, err := decodeStringFields(dec, "url")
		if err != nil {
			return nil, err
		}
		return graph.Website{URL: f["url"]}, nil
	case graph.KindIP:
		addr, err := decodeAddr(dec)
		if err != nil {
			return nil, err
		}
		return graph.IP{Addr: addr}, nil
	case graph.KindPhoneNumber:
		s, err := dec.DecodeString()
		return graph.PhoneNumber(s), err
	case graph.KindEmailAddress:
		s, err := dec.DecodeString()
		return graph.EmailAddress(s), err
	case graph.KindPerson:
		s, err := dec.DecodeString()
		return graph.Person(s), err
	case graph.KindOrganization:
		s, err := dec.DecodeString()
		return graph.Organization(s), err
	case graph.KindDomain:
		s, err := dec.DecodeString()
		return graph.Domain(s), err
	case graph.KindDNSEntry:
		return decodeDNSEntry(dec)
	default:
		return nil, malformed("unknown node kind %q", kind)
	}
}

func decodeDNSEntry(dec *msgpack.Decoder) (graph.Node, error) {
	var (
		entry              graph.DNSEntry
		haveNS, haveRecord bool
	)
	err := decodeMap(dec, func(key string) (bool, error) {
		switch key {
		case "nameserver":
			s, err := dec.DecodeString()
			entry.Nameserver = graph.Domain(s)
			haveNS = true
			return true, err
		case "record":
			r, err := decodeRecord(dec)
			entry.Record = r
			haveRecord = true
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if !haveNS || !haveRecord {
		return nil, malformed("DNSEntry requires nameserver and record")
	}
	return entry, nil
}

func encodeRecord(enc *msgpack.Encoder, r graph.DNSRecord) error {
	if r == nil {
		return unsupported("nil DNS record")
	}
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString(string(r.Type())); err != nil {
		return err
	}

	switch v := r.(type) {
	case graph.A:
		return enc.EncodeString(addrText(v.Addr))
	case graph.AAAA:
		return enc.EncodeString(addrText(v.Addr))
	case graph.CNAME:
		return encodeStringFields(enc, "from", v.From, "to", string(v.To))
	case graph.MX:
		return enc.EncodeString(string(v.Exchange))
	case graph.SRV:
		if err := enc.EncodeMapLen(5); err != nil {
			return err
		}
		for _, kv := range [][2]string{
			{"service", v.Service},
			{"protocol", v.Protocol},
			{"from", v.From},
			{"to", v.To},
		} {
			if err := enc.EncodeString(kv[0]); err != nil {
				return err
			}
			if err := enc.EncodeString(kv[1]); err != nil {
				return err
			}
		}
		if err := enc.EncodeString("to_port"); err != nil {
			return err
		}
		return enc.EncodeUint16(v.ToPort)
	case graph.TXT:
		return enc.EncodeString(v.Text)
	default:
		return unsupported("DNS record type %T", r)
	}
}

func decodeRecord(dec *msgpack.Decoder) (graph.DNSRecord, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, malformed("DNS record must be a single-entry map, got %d entries", n)
	}
	typ, err := dec.DecodeString()
	if err != nil {
		return nil, err
	}

	switch graph.RecordType(typ) {
	case graph.RecordA:
		addr, err := decodeAddr(dec)
		return graph.A{Addr: addr}, err
	case graph.RecordAAAA:
		addr, err := decodeAddr(dec)
		return graph.AAAA{Addr: addr}, err
	case graph.RecordCNAME:
		f, err := decodeStringFields(dec, "from", "to")
		if err != nil {
			return nil, err
		}
		return graph.CNAME{From: f["from"], To: graph.Domain(f["to"])}, nil
	case graph.RecordMX:
		s, err := dec.DecodeString()
		return graph.MX{Exchange: graph.Domain(s)}, err
	case graph.RecordSRV:
		return decodeSRV(dec)
	case graph.RecordTXT:
		s, err := dec.DecodeString()
		return graph.TXT{Text: s}, err
	default:
		return nil, malformed("unknown DNS record type %q", typ)
	}
}

func decodeSRV(dec *msgpack.Decoder) (graph.DNSRecord, error) {
	var (
		srv  graph.SRV
		seen = make(map[string]bool, 5)
	)
	err := decodeMap(dec, func(key string) (bool, error) {
		var dst *string
		switch key {
		case "service":
			dst = &srv.Service
		case "protocol":
			dst = &srv.Protocol
		case "from":
			dst = &srv.From
		case "to":
			dst = &srv.To
		case "to_port":
			port, err := dec.DecodeUint64()
			if err != nil {
				return true, err
			}
			if port > 0xffff {
				return true, malformed("port %d out of range", port)
			}
			srv.ToPort = uint16(port)
			seen[key] = true
			return true, nil
		default:
			return false, nil
		}
		s, err := dec.DecodeString()
		*dst = s
		seen[key] = true
		return true, err
	})
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"service", "protocol", "from", "to", "to_port"} {
		if !seen[name] {
			return nil, malformed("SRV record missing field %q", name)
		}
	}
	return srv, nil
}

// addrText renders an address; the zero Addr is the empty string.
func addrText(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}

func decodeAddr(dec *msgpack.Decoder) (netip.Addr, error) {
	s, err := dec.DecodeString()
	if err != nil {
		return netip.Addr{}, err
	}
	if s == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, malformed("invalid IP address %q", s)
	}
	return addr, nil
}
