package xbrl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// COMPANY FACTS PAYLOAD - typed view of data.sec.gov/api/xbrl/companyfacts
// =============================================================================

// NamespaceUSGAAP is the taxonomy namespace the pipeline reads.
const NamespaceUSGAAP = "us-gaap"

// CompanyFacts is the decoded company facts response.
type CompanyFacts struct {
	CIK        int                            `json:"cik"`
	EntityName string                         `json:"entityName"`
	Facts      map[string]map[string]TagFacts `json:"facts"`
}

// TagFacts holds every reported point for one tag, keyed by unit ("USD", "shares" ...).
type TagFacts struct {
	Label       string                 `json:"label,omitempty"`
	Description string                 `json:"description,omitempty"`
	Units       map[string][]FactPoint `json:"units"`
}

// FactPoint is one observation as published by the SEC. Optional fields are
// empty strings when absent.
type FactPoint struct {
	Val   FactValue `json:"val"`
	Start string    `json:"start,omitempty"`
	End   string    `json:"end"`
	Accn  string    `json:"accn,omitempty"`
	FY    int       `json:"fy,omitempty"`
	FP    string    `json:"fp,omitempty"`
	Form  string    `json:"form"`
	Filed string    `json:"filed"`
	Frame string    `json:"frame,omitempty"`
}

// FactValue is a numeric value that tolerates bad input. A value that is
// missing, null or non-numeric decodes with Valid=false instead of failing
// the whole payload.
type FactValue struct {
	Value float64
	Valid bool
}

// Float returns a FactValue holding v.
func Float(v float64) FactValue { return FactValue{Value: v, Valid: true} }

// UnmarshalJSON accepts JSON numbers and finite numeric strings.
func (v *FactValue) UnmarshalJSON(data []byte) error {
	*v = FactValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	v.Value, v.Valid = f, true
	return nil
}

// MarshalJSON writes null for invalid values.
func (v FactValue) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

// ParseCompanyFacts decodes a company facts payload from r.
func ParseCompanyFacts(r io.Reader) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &facts, nil
}

// DecodeCompanyFacts decodes a company facts payload held in memory.
func DecodeCompanyFacts(data []byte) (*CompanyFacts, error) {
	return ParseCompanyFacts(bytes.NewReader(data))
}

// USGAAP returns the us-gaap namespace or ErrNoUSGAAPFacts.
func (c *CompanyFacts) USGAAP() (map[string]TagFacts, error) {
	if c == nil {
		return nil, ErrMalformedPayload
	}
	ns, ok := c.Facts[NamespaceUSGAAP]
	if !ok || len(ns) == 0 {
		return nil, ErrNoUSGAAPFacts
	}
	return ns, nil
}

// Tags returns the sorted list of us-gaap tags present in the payload.
func (c *CompanyFacts) Tags() []string {
	ns := c.Facts[NamespaceUSGAAP]
	tags := make([]string, 0, len(ns))
	for t := range ns {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// =============================================================================
// DATE PARSING
// =============================================================================

// DateLayout is the SEC date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseDate parses an SEC date. ok is false for empty or malformed input.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
