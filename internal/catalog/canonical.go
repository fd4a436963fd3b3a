package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainCatalog is the hash domain prefix for catalog digests.
// The version suffix allows the encoding to change without colliding.
const DomainCatalog = "bookmerge/catalog/v1"

// MarshalCanonical produces the canonical JSON encoding of a catalog.
//
// Differences from json.Marshal:
//  1. Strings are NFC normalized
//  2. No HTML escaping (< > & are NOT escaped)
//  3. No insignificant whitespace
//  4. Field order is fixed; configs keep insertion order
func MarshalCanonical(c *Catalog) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"groups":[`)
	for i, g := range c.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"id":`)
		buf.WriteString(strconv.FormatInt(g.ID, 10))
		if err := writeField(&buf, "name", g.Name); err != nil {
			return nil, fmt.Errorf("group %d: %w", g.ID, err)
		}
		writeInt(&buf, "order_num", g.OrderNum)
		writeInt(&buf, "is_public", g.IsPublic)
		buf.WriteByte('}')
	}
	buf.WriteString(`],"sites":[`)
	for i, s := range c.Sites {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"id":`)
		buf.WriteString(strconv.FormatInt(s.ID, 10))
		buf.WriteString(`,"group_id":`)
		buf.WriteString(strconv.FormatInt(s.GroupID, 10))
		for _, f := range [][2]string{
			{"name", s.Name},
			{"url", s.URL},
			{"icon", s.Icon},
			{"description", s.Description},
			{"notes", s.Notes},
		} {
			if err := writeField(&buf, f[0], f[1]); err != nil {
				return nil, fmt.Errorf("site %d: %w", s.ID, err)
			}
		}
		writeInt(&buf, "order_num", s.OrderNum)
		writeInt(&buf, "is_public", s.IsPublic)
		buf.WriteByte('}')
	}
	buf.WriteString(`],"configs":{`)
	for i, kv := range c.Configs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := canonicalString(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := canonicalString(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// Hash returns the hex SHA-256 digest of the canonical encoding, with domain
// separation. Two catalogs with equal hashes have identical ids and ordering.
func (c *Catalog) Hash() (string, error) {
	data, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("catalog hash: %w", err)
	}
	return hashWithDomain(DomainCatalog, data), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(buf *bytes.Buffer, name, value string) error {
	enc, err := canonicalString(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	buf.WriteString(`,"`)
	buf.WriteString(name)
	buf.WriteString(`":`)
	buf.Write(enc)
	return nil
}

func writeInt(buf *bytes.Buffer, name string, v int) {
	buf.WriteString(`,"`)
	buf.WriteString(name)
	buf.WriteString(`":`)
	buf.WriteString(strconv.Itoa(v))
}

// canonicalString encodes s as a JSON string after NFC normalization,
// without HTML escaping.
func canonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
