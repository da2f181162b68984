// Package metadata models the before/after metadata report produced by a
// sandbox run: a set of named, tagged fields found in the document's
// primary body and in any embedded sub-documents.
package metadata

import (
	"encoding/json"
	"fmt"
)

// Tag classifies why a field is reported, mirroring the categories the
// original implementation assigns so downstream consumers can decide what
// is safe to keep, what accessibility tooling depends on, and what a
// signature depends on.
type Tag int

const (
	// Deletable fields carry no functional purpose and are always safe
	// to strip.
	Deletable Tag = iota
	// Accessibility fields are read by assistive technology and are kept
	// unless the caller explicitly overrides them.
	Accessibility
	// Signature fields are part of a digital signature; removing one
	// invalidates the signature.
	Signature
	// Compliance fields are required by a regulatory or archival profile
	// (e.g. PDF/A) and should not be removed silently.
	Compliance
	// Legal fields carry rights or licensing information.
	Legal
)

func (t Tag) String() string {
	switch t {
	case Deletable:
		return "deletable"
	case Accessibility:
		return "accessibility"
	case Signature:
		return "signature"
	case Compliance:
		return "compliance"
	case Legal:
		return "legal"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// Scalar is a typed sum of the value shapes a metadata field can hold:
// a bool, an int64, a float64, a string, or a list of Scalars. Exactly one
// of the fields is populated; List is non-nil only for list values.
type Scalar struct {
	Bool  *bool    `json:"bool,omitempty"`
	Int   *int64   `json:"int,omitempty"`
	Float *float64 `json:"float,omitempty"`
	Str   *string  `json:"str,omitempty"`
	List  []Scalar `json:"list,omitempty"`
}

func BoolValue(b bool) Scalar     { return Scalar{Bool: &b} }
func IntValue(i int64) Scalar     { return Scalar{Int: &i} }
func FloatValue(f float64) Scalar { return Scalar{Float: &f} }
func StringValue(s string) Scalar { return Scalar{Str: &s} }
func ListValue(l []Scalar) Scalar { return Scalar{List: l} }

// String renders the scalar as plain text for logging and display; lists
// are rendered as "[a, b]".
func (s Scalar) String() string {
	switch {
	case s.Bool != nil:
		return fmt.Sprintf("%t", *s.Bool)
	case s.Int != nil:
		return fmt.Sprintf("%d", *s.Int)
	case s.Float != nil:
		return fmt.Sprintf("%g", *s.Float)
	case s.Str != nil:
		return *s.Str
	case s.List != nil:
		out := "["
		for i, v := range s.List {
			if i > 0 {
				out += ", "
			}
			out += v.String()
		}
		return out + "]"
	default:
		return ""
	}
}

// MarshalJSON renders a Scalar as a bare JSON value instead of the
// discriminated struct, so wire payloads read the way a hand-written JSON
// document would.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch {
	case s.Bool != nil:
		return json.Marshal(*s.Bool)
	case s.Int != nil:
		return json.Marshal(*s.Int)
	case s.Float != nil:
		return json.Marshal(*s.Float)
	case s.Str != nil:
		return json.Marshal(*s.Str)
	case s.List != nil:
		return json.Marshal(s.List)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON recovers a Scalar from a bare JSON value.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = fromAny(raw)
	return nil
}

func fromAny(v interface{}) Scalar {
	switch t := v.(type) {
	case bool:
		return BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []interface{}:
		list := make([]Scalar, len(t))
		for i, e := range t {
			list[i] = fromAny(e)
		}
		return ListValue(list)
	default:
		return Scalar{}
	}
}

// Field is a single named metadata entry, grouped under a logical field
// group (e.g. a PDF info dictionary key's "Group:Name" pair) with an
// optional human-readable description.
type Field struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
	Description string `json:"description,omitempty"`
	Value       Scalar `json:"value"`
	Tags        []Tag  `json:"tags"`
}

// HasTag reports whether f carries tag t.
func (f Field) HasTag(t Tag) bool {
	for _, ft := range f.Tags {
		if ft == t {
			return true
		}
	}
	return false
}

// Document is the full before/after metadata report for one document:
// fields found directly in the primary body, fields found in each embedded
// sub-document (keyed by an opaque embed id), and whether the document
// carries a digital signature.
type Document struct {
	Primary map[string]Field            `json:"primary"`
	Embeds  map[string]map[string]Field `json:"embeds,omitempty"`
	Signed  bool                        `json:"signed"`
}

// NewDocument returns an empty metadata document.
func NewDocument() Document {
	return Document{Primary: map[string]Field{}}
}
