package readings

import (
	"strings"
	"time"
)

// Order selects the sort direction of a history query.
type Order string

const (
	// Ascending is oldest-first, the order chart rendering wants.
	Ascending Order = "asc"
	// Descending is newest-first, the order conversational display wants.
	Descending Order = "desc"
)

// Reading is one timestamped set of biomarker values extracted from an
// ingested document. Readings are append-only: never updated, never deleted.
type Reading struct {
	ID          string             `json:"id"`
	Identity    string             `json:"identity"`
	ObservedAt  time.Time          `json:"observed_at"`
	Markers     map[string]float64 `json:"markers"`
	RawText     string             `json:"raw_text"`
	CleanedText string             `json:"cleaned_text"`
}

// CanonicalMarker maps a label to its canonical marker key: uppercase
// alphanumerics only, so "LDL-C", "ldl c" and "LDL_C" all become "LDLC".
func CanonicalMarker(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range strings.ToUpper(label) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// vocabulary is the closed set of marker names trend queries understand.
// Display names are matched case-insensitively as substrings of free text;
// the canonical form keys the stored marker maps. Markers outside this list
// can never be matched or charted; that is a deliberate limitation of the
// closed-vocabulary design, not an oversight.
var vocabulary = []string{
	"LDL",
	"HDL",
	"triglycerides",
	"cholesterol",
	"glucose",
	"HbA1c",
	"CRP",
	"ferritin",
	"TSH",
	"creatinine",
	"hemoglobin",
	"vitamin d",
	"ALT",
	"AST",
}

// DetectRequestedMarker scans free text for the first known marker name and
// returns its canonical key, or "" when none matches.
func DetectRequestedMarker(freeText string) string {
	lowered := strings.ToLower(freeText)
	for _, name := range vocabulary {
		if strings.Contains(lowered, strings.ToLower(name)) {
			return CanonicalMarker(name)
		}
	}
	return ""
}
