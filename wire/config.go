package wire

import (
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Field is one configuration entry.
type Field struct {
	Name  string
	Value string
}

// Config is an ordered mapping from configuration field name to value. Order
// is the order in which fields were first added, which for a plugin is the
// order its default_config declared them. The zero value is empty and ready
// to use.
type Config struct {
	fields []Field
}

// NewConfig builds a Config from alternating name/value pairs. A trailing
// name without a value gets the empty string.
func NewConfig(pairs ...string) Config {
	var c Config
	for i := 0; i < len(pairs); i += 2 {
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		c.Put(pairs[i], value)
	}
	return c
}

// Len returns the number of fields.
func (c Config) Len() int {
	return len(c.fields)
}

// Names returns the field names in order.
func (c Config) Names() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in order.
func (c Config) Fields() []Field {
	return slices.Clone(c.fields)
}

// Get returns the value of name.
func (c Config) Get(name string) (string, bool) {
	if i := c.find(name); i >= 0 {
		return c.fields[i].Value, true
	}
	return "", false
}

// Has reports whether name is a field.
func (c Config) Has(name string) bool {
	return c.find(name) >= 0
}

// Set overwrites the value of an existing field. It reports false, leaving c
// untouched, when name is not a field: fields are never added this way.
func (c *Config) Set(name, value string) bool {
	i := c.find(name)
	if i < 0 {
		return false
	}
	c.fields[i].Value = value
	return true
}

// Put sets name to value, appending the field if it does not exist yet.
func (c *Config) Put(name, value string) {
	if c.Set(name, value) {
		return
	}
	c.fields = append(c.fields, Field{Name: name, Value: value})
}

// Clone returns a copy that shares no storage with c.
func (c Config) Clone() Config {
	return Config{fields: slices.Clone(c.fields)}
}

// Equal reports whether both configs hold the same fields in the same order.
func (c Config) Equal(other Config) bool {
	return slices.Equal(c.fields, other.fields)
}

// Map returns the fields as an unordered map.
func (c Config) Map() map[string]string {
	m := make(map[string]string, len(c.fields))
	for _, f := range c.fields {
		m[f.Name] = f.Value
	}
	return m
}

func (c Config) find(name string) int {
	return slices.IndexFunc(c.fields, func(f Field) bool { return f.Name == name })
}

// EncodeConfig encodes c as a msgpack map in field order.
func EncodeConfig(c Config) ([]byte, error) {
	return marshal("wire.EncodeConfig", func(enc *msgpack.Encoder) error {
		return encodeConfig(enc, c)
	})
}

// DecodeConfig decodes a msgpack map of strings, preserving entry order. A
// repeated key keeps its first position and its last value.
func DecodeConfig(b []byte) (Config, error) {
	var c Config
	err := unmarshal("wire.DecodeConfig", b, func(dec *msgpack.Decoder) error {
		var err error
		c, err = decodeConfig(dec)
		return err
	})
	return c, err
}

func encodeConfig(enc *msgpack.Encoder, c Config) error {
	if err := enc.EncodeMapLen(len(c.fields)); err != nil {
		return err
	}
	for _, f := range c.fields {
		if err := enc.EncodeString(f.Name); err != nil {
			return err
		}
		if err := enc.EncodeString(f.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeConfig(dec *msgpack.Decoder) (Config, error) {
	var c Config
	err := decodeMap(dec, func(key string) (bool, error) {
		value, err := dec.DecodeString()
		if err != nil {
			return true, err
		}
		c.Put(key, value)
		return true, nil
	})
	if err != nil {
		return Config{}, err
	}
	return c, nil
}
