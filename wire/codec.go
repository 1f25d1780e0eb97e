package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/miampf/schnuffel/hosterr"
)

// ContractVersion is the envelope version spoken by this package. Envelopes
// carrying any other version are rejected.
const ContractVersion = 1

// maxSkipDepth bounds the nesting of values skipped under unknown keys.
const maxSkipDepth = 32

// maxPrealloc caps slice capacity reserved from untrusted length prefixes.
const maxPrealloc = 1024

func malformed(format string, args ...any) error {
	return hosterr.Newf("", hosterr.KindDecode, hosterr.CodeMalformed, format, args...)
}

func unsupported(format string, args ...any) error {
	return hosterr.Newf("", hosterr.KindInternal, hosterr.CodeUnsupported, format, args...)
}

// tag attaches op to errors produced below the public entry points.
func tag(op string, kind hosterr.Kind, code string, err error) error {
	var he *hosterr.Error
	if errors.As(err, &he) && he.Op == "" {
		he.Op = op
		return he
	}
	return hosterr.New(op, kind, code, "").WithCause(err)
}

func marshal(op string, fn func(enc *msgpack.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := fn(enc); err != nil {
		return nil, tag(op, hosterr.KindInternal, hosterr.CodeUnsupported, err)
	}
	return buf.Bytes(), nil
}

func unmarshal(op string, b []byte, fn func(dec *msgpack.Decoder) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = hosterr.Newf(op, hosterr.KindDecode, hosterr.CodeMalformed, "decoder panic: %v", r)
		}
	}()

	if len(b) == 0 {
		return hosterr.New(op, hosterr.KindDecode, hosterr.CodeMalformed, "empty input")
	}

	r := bytes.NewReader(b)
	dec := msgpack.NewDecoder(r)
	if err := fn(dec); err != nil {
		return tag(op, hosterr.KindDecode, hosterr.CodeMalformed, err)
	}
	if r.Len() > 0 {
		return hosterr.Newf(op, hosterr.KindDecode, hosterr.CodeMalformed, "%d trailing bytes", r.Len())
	}
	return nil
}

// decodeMap reads a map, handing each key to field. Keys field does not know
// are skipped so newer peers may add entries.
func decodeMap(dec *msgpack.Decoder, field func(key string) (bool, error)) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		known, err := field(key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if !known {
			if err := skipValue(dec, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipValue discards one value. Containers are walked here rather than by
// Decoder.Skip, whose recursion is unbounded, so a deeply nested value fails
// as malformed instead of exhausting the stack.
func skipValue(dec *msgpack.Decoder, depth int) error {
	if depth >= maxSkipDepth {
		return malformed("value nested deeper than %d levels", maxSkipDepth)
	}
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}

	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		for i := 0; i < 2*n; i++ {
			if err := skipValue(dec, depth+1); err != nil {
				return err
			}
		}
		return nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := skipValue(dec, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		// scalars, strings, binary and extensions hold no nested values
		return dec.Skip()
	}
}

// decodeStringFields reads a map whose listed entries are all strings and all
// required.
func decodeStringFields(dec *msgpack.Decoder, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	err := decodeMap(dec, func(key string) (bool, error) {
		for _, name := range names {
			if key != name {
				continue
			}
			s, err := dec.DecodeString()
			if err != nil {
				return true, err
			}
			out[name] = s
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := out[name]; !ok {
			return nil, malformed("missing field %q", name)
		}
	}
	return out, nil
}

func encodeStringFields(enc *msgpack.Encoder, kv ...string) error {
	if err := enc.EncodeMapLen(len(kv) / 2); err != nil {
		return err
	}
	for _, s := range kv {
		if err := enc.EncodeString(s); err != nil {
			return err
		}
	}
	return nil
}
