package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Config is one configuration entry.
type Config struct {
	Key   string
	Value string
}

// Configs is an insertion-ordered key/value map.
// It marshals as a JSON object whose keys keep insertion order.
type Configs []Config

// Get returns the value for key.
func (c Configs) Get(key string) (string, bool) {
	for _, kv := range c {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (c Configs) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Add appends key unless it is already present. Returns false if the key
// already existed (first-seen wins).
func (c *Configs) Add(key, value string) bool {
	if c.Has(key) {
		return false
	}
	*c = append(*c, Config{Key: key, Value: value})
	return true
}

// Map returns an unordered copy.
func (c Configs) Map() map[string]string {
	m := make(map[string]string, len(c))
	for _, kv := range c {
		m[kv.Key] = kv.Value
	}
	return m
}

// MarshalJSON writes the configs as an object in insertion order.
func (c Configs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (c *Configs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("configs: expected object, got %v", tok)
	}

	var out Configs
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("configs: expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("configs[%q]: %w", key, err)
		}
		out.Add(key, scalarText(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// scalarText returns the string content of a JSON string, or the raw JSON text
// for any other value.
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
