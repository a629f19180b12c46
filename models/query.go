package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// QueryKind identifies which pair of identifying fields a lookup carries.
type QueryKind string

const (
	ByReferenceAndID     QueryKind = "reference_id"
	BySerialAndReference QueryKind = "serial_reference"
	ByIDAndSerial        QueryKind = "id_serial"
)

// Query is a validated lookup request. Exactly one variant is populated:
// the Kind tag names it, and only the two fields belonging to that variant
// carry values. The variant determines which pair of target-form inputs is
// filled; there is no generic fallback.
type Query struct {
	Kind      QueryKind
	Reference string
	IDNumber  string
	Serial    string
}

// Values returns the variant's two field values in the fixed order used by
// the target-form field table (first field, second field).
func (q *Query) Values() (string, string) {
	switch q.Kind {
	case ByReferenceAndID:
		return q.Reference, q.IDNumber
	case BySerialAndReference:
		return q.Serial, q.Reference
	case ByIDAndSerial:
		return q.IDNumber, q.Serial
	default:
		return "", ""
	}
}

// Validate checks the exactly-one-variant invariant: the Kind is known, the
// variant's two fields are non-empty, and the leftover field is empty.
func (q *Query) Validate() error {
	var want [2]string
	var spare string
	switch q.Kind {
	case ByReferenceAndID:
		want, spare = [2]string{q.Reference, q.IDNumber}, q.Serial
	case BySerialAndReference:
		want, spare = [2]string{q.Serial, q.Reference}, q.IDNumber
	case ByIDAndSerial:
		want, spare = [2]string{q.IDNumber, q.Serial}, q.Reference
	default:
		return NewLookupError(ErrCodeInvalidInput, fmt.Sprintf("unknown query kind: %q", q.Kind), nil)
	}
	if want[0] == "" || want[1] == "" {
		return NewLookupError(ErrCodeInvalidInput, fmt.Sprintf("query kind %s requires both of its fields", q.Kind), nil)
	}
	if spare != "" {
		return NewLookupError(ErrCodeInvalidInput, fmt.Sprintf("query kind %s must not carry a third field", q.Kind), nil)
	}
	return nil
}

// CacheKey derives the canonical cache key for the query: a sha256 over the
// variant tag and the variant's field values in fixed order. Each value is
// length-prefixed, so a delimiter character inside a value cannot alias a
// different query. Structurally equal queries always hash equal; distinct
// variants or values never collide.
func (q *Query) CacheKey() string {
	v1, v2 := q.Values()
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d:%s|%d:%s", q.Kind, len(v1), v1, len(v2), v2)
	return hex.EncodeToString(h.Sum(nil))
}

// Result is the outcome of one successful lookup: the trimmed text content
// of the target page's result region. The upstream format is free text, so
// no further structuring is attempted.
type Result struct {
	RawText string `json:"raw_text"`
}
