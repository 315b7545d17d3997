package txn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Payload is the flat attribute map carried by a Transaction.
type Payload map[string]string

// FieldError reports a missing or malformed payload field.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("payload field %q: %s", e.Key, e.Reason)
}

// Clone returns a copy of p that can be mutated independently.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns a required, non-empty field.
func (p Payload) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", &FieldError{Key: key, Reason: "missing"}
	}
	if v == "" {
		return "", &FieldError{Key: key, Reason: "empty"}
	}
	return v, nil
}

// Optional returns a field or "" when absent.
func (p Payload) Optional(key string) string {
	return p[key]
}

// Int parses a required decimal integer field.
func (p Payload) Int(key string) (int, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &FieldError{Key: key, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

// Uint64 parses a required unsigned integer field.
func (p Payload) Uint64(key string) (uint64, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, &FieldError{Key: key, Reason: fmt.Sprintf("not an unsigned integer: %q", v)}
	}
	return n, nil
}

// Float parses a required floating point field.
func (p Payload) Float(key string) (float64, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &FieldError{Key: key, Reason: fmt.Sprintf("not a number: %q", v)}
	}
	return f, nil
}

// Bool parses a required boolean field.
func (p Payload) Bool(key string) (bool, error) {
	v, err := p.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &FieldError{Key: key, Reason: fmt.Sprintf("not a boolean: %q", v)}
	}
	return b, nil
}

// Counts parses a field written by EncodeCounts. An absent field is an
// empty map.
func (p Payload) Counts(key string) (map[string]int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return map[string]int{}, nil
	}
	out, err := DecodeCounts(v)
	if err != nil {
		return nil, &FieldError{Key: key, Reason: err.Error()}
	}
	return out, nil
}

// Itoa and FormatFloat keep numeric payload values in one textual form.
func Itoa(n int) string { return strconv.Itoa(n) }

func Utoa(n uint64) string { return strconv.FormatUint(n, 10) }

func FormatFloat(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// EncodeCounts renders a count map as a sorted "k=v,k=v" list.
func EncodeCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(counts[k]))
	}
	return strings.Join(parts, ",")
}

// DecodeCounts parses the form written by EncodeCounts.
func DecodeCounts(s string) (map[string]int, error) {
	out := map[string]int{}
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("malformed count in %q", part)
		}
		out[k] = n
	}
	return out, nil
}
