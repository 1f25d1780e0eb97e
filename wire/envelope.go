package wire

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/hosterr"
)

// Request is the envelope passed to every entry point: the complete current
// configuration plus the call's input.
//
// Data may be a string, a graph.Node, a *graph.Graph or a Config.
type Request[T any] struct {
	Config Config
	Data   T
}

// Response is the envelope every entry point returns.
//
// Data may be a string, a graph.Node, a *graph.Graph or a Config.
type Response[T any] struct {
	Data T
}

// EncodeRequest encodes req as {"version", "config", "data"}.
func EncodeRequest[T any](req Request[T]) ([]byte, error) {
	return marshal("wire.EncodeRequest", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeMapLen(3); err != nil {
			return err
		}
		if err := encodeVersion(enc); err != nil {
			return err
		}
		if err := enc.EncodeString("config"); err != nil {
			return err
		}
		if err := encodeConfig(enc, req.Config); err != nil {
			return err
		}
		if err := enc.EncodeString("data"); err != nil {
			return err
		}
		return encodePayload(enc, req.Data)
	})
}

// DecodeRequest decodes a request envelope. A missing config decodes as an
// empty Config; a missing or foreign version, or a missing data entry, is an
// error.
func DecodeRequest[T any](b []byte) (Request[T], error) {
	var req Request[T]
	err := unmarshal("wire.DecodeRequest", b, func(dec *msgpack.Decoder) error {
		var env envelope
		err := decodeMap(dec, func(key string) (bool, error) {
			switch key {
			case "config":
				c, err := decodeConfig(dec)
				req.Config = c
				return true, err
			case "data":
				v, err := decodePayload[T](dec)
				req.Data = v
				env.haveData = true
				return true, err
			}
			return env.field(dec, key)
		})
		if err != nil {
			return err
		}
		return env.check()
	})
	if err != nil {
		return Request[T]{}, err
	}
	return req, nil
}

// EncodeResponse encodes resp as {"version", "data"}.
func EncodeResponse[T any](resp Response[T]) ([]byte, error) {
	return marshal("wire.EncodeResponse", func(enc *msgpack.Encoder) error {
		if err := enc.EncodeMapLen(2); err != nil {
			return err
		}
		if err := encodeVersion(enc); err != nil {
			return err
		}
		if err := enc.EncodeString("data"); err != nil {
			return err
		}
		return encodePayload(enc, resp.Data)
	})
}

// DecodeResponse decodes a response envelope.
func DecodeResponse[T any](b []byte) (Response[T], error) {
	var resp Response[T]
	err := unmarshal("wire.DecodeResponse", b, func(dec *msgpack.Decoder) error {
		var env envelope
		err := decodeMap(dec, func(key string) (bool, error) {
			if key == "data" {
				v, err := decodePayload[T](dec)
				resp.Data = v
				env.haveData = true
				return true, err
			}
			return env.field(dec, key)
		})
		if err != nil {
			return err
		}
		return env.check()
	})
	if err != nil {
		return Response[T]{}, err
	}
	return resp, nil
}

// envelope tracks the entries shared by requests and responses.
type envelope struct {
	haveVersion bool
	haveData    bool
}

func (e *envelope) field(dec *msgpack.Decoder, key string) (bool, error) {
	if key != "version" {
		return false, nil
	}
	v, err := dec.DecodeUint64()
	if err != nil {
		return true, err
	}
	if v != ContractVersion {
		return true, hosterr.Newf("", hosterr.KindDecode, hosterr.CodeVersionMismatch,
			"envelope version %d, want %d", v, ContractVersion)
	}
	e.haveVersion = true
	return true, nil
}

func (e *envelope) check() error {
	if !e.haveVersion {
		return hosterr.New("", hosterr.KindDecode, hosterr.CodeVersionMismatch, "envelope carries no version")
	}
	if !e.haveData {
		return malformed("envelope carries no data")
	}
	return nil
}

func encodeVersion(enc *msgpack.Encoder) error {
	if err := enc.EncodeString("version"); err != nil {
		return err
	}
	return enc.EncodeUint(ContractVersion)
}

func encodePayload(enc *msgpack.Encoder, v any) error {
	switch v := v.(type) {
	case string:
		return enc.EncodeString(v)
	case Config:
		return encodeConfig(enc, v)
	case *graph.Graph:
		return encodeGraph(enc, v)
	case graph.Node:
		return encodeNode(enc, v)
	default:
		return unsupported("payload type %T", v)
	}
}

func decodePayload[T any](dec *msgpack.Decoder) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *string:
		s, err := dec.DecodeString()
		*p = s
		return out, err
	case *Config:
		c, err := decodeConfig(dec)
		*p = c
		return out, err
	case **graph.Graph:
		g, err := decodeGraph(dec)
		*p = g
		return out, err
	case *graph.Node:
		n, err := decodeNode(dec)
		*p = n
		return out, err
	default:
		return out, unsupported("payload type %T", out)
	}
}
