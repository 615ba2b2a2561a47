// Package intake turns raw asset submission payloads into persistable
// submission records. It extracts embedded photo evidence into the object
// store, derives the queryable core columns and reshapes per-check proof
// attachments into a keyed security check structure.
package intake

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind tags the type of a payload value.
type Kind int

// Recognized payload value kinds.
const (
	// KindNull marks an absent or invalidated value.
	KindNull Kind = iota
	// KindText is a plain string field.
	KindText
	// KindFlag is a boolean field.
	KindFlag
	// KindImage is a retrieval address of a stored photo object.
	KindImage
	// KindOther preserves values the service does not interpret.
	KindOther
)

// Value is a tagged payload value. Submissions are untyped beyond convention,
// so everything the service does not interpret round-trips through Raw.
type Value struct {
	Kind Kind

	Text string
	Flag bool
	Raw  json.RawMessage
}

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Flag returns a boolean value.
func Flag(b bool) Value { return Value{Kind: KindFlag, Flag: b} }

// Image returns an image reference value pointing at a stored object.
func Image(url string) Value { return Value{Kind: KindImage, Text: url} }

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// String returns the textual content of text and image values, and "" otherwise.
func (v Value) String() string {
	if v.Kind == KindText || v.Kind == KindImage {
		return v.Text
	}
	return ""
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Interface returns the plain Go representation of the value.
func (v Value) Interface() any {
	switch v.Kind {
	case KindText, KindImage:
		return v.Text
	case KindFlag:
		return v.Flag
	case KindOther:
		var out any
		if err := json.Unmarshal(v.Raw, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON decodes a JSON value into the matching tagged kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Flag(b)
		return nil
	}
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON payload value: %q", data)
	}
	*v = Value{Kind: KindOther, Raw: append(json.RawMessage(nil), data...)}
	return nil
}

// MarshalJSON encodes the value back to its plain JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText, KindImage:
		return json.Marshal(v.Text)
	case KindFlag:
		return json.Marshal(v.Flag)
	case KindOther:
		return v.Raw, nil
	default:
		return []byte("null"), nil
	}
}

// Payload is the raw submission mapping of field name to value.
type Payload map[string]Value

// Keys returns all payload keys in lexical order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PhotoSource identifies which capture path produced a photo field.
type PhotoSource string

// Recognized photo capture sources.
const (
	SourceUpload PhotoSource = "upload"
	SourceCamera PhotoSource = "camera"
)

// photoSuffixes is the declared table of recognized photo field suffixes.
// Any payload key ending in one of these is treated as embedded photo evidence.
var photoSuffixes = []struct {
	Suffix string
	Source PhotoSource
}{
	{"_photo", SourceUpload},
	{"_cameraPhoto", SourceCamera},
}

// PhotoKey reports whether key names a photo field, and if so returns the
// base check name and the capture source.
func PhotoKey(key string) (base string, source PhotoSource, ok bool) {
	for _, s := range photoSuffixes {
		if strings.HasSuffix(key, s.Suffix) {
			return strings.TrimSuffix(key, s.Suffix), s.Source, true
		}
	}
	return "", "", false
}

// PhotoKeys returns the payload's photo field keys in lexical order.
func (p Payload) PhotoKeys() []string {
	var keys []string
	for _, k := range p.Keys() {
		if _, _, ok := PhotoKey(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}
