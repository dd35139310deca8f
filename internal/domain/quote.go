package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Pricing-origin tags selecting the coverage filter tier applied to the
// listed plans. Any other value keeps every plan.
const (
	OriginTierA = "tier-a"
	OriginTierB = "tier-b"
)

// AgeTally counts travelers per vendor age bracket. The pricing operation
// takes one count per bracket; ages above 85 fold into the last bracket.
type AgeTally struct {
	UpTo65 int
	UpTo70 int
	UpTo75 int
	UpTo80 int
	UpTo85 int
}

// Total returns the number of travelers across all brackets.
func (t AgeTally) Total() int {
	return t.UpTo65 + t.UpTo70 + t.UpTo75 + t.UpTo80 + t.UpTo85
}

// TallyAges buckets every age into exactly one bracket.
func TallyAges(ages []int) AgeTally {
	var t AgeTally
	for _, a := range ages {
		switch {
		case a <= 65:
			t.UpTo65++
		case a <= 70:
			t.UpTo70++
		case a <= 75:
			t.UpTo75++
		case a <= 80:
			t.UpTo80++
		default:
			t.UpTo85++
		}
	}
	return t
}

// PlanCandidate is one plan from the vendor listing response, before
// pricing. Attributes holds the raw flat record as parsed.
type PlanCandidate struct {
	ID         string
	Name       string
	Attributes map[string]string
}

// PricedPlan is the terminal output of the quote flow.
type PricedPlan struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Coverage   string  `json:"coverage"`
	Baggage    string  `json:"baggage"`
	TotalPrice float64 `json:"totalPrice"`
	TripTypeID string  `json:"tripTypeId,omitempty"`
}

var (
	coverageNameRe = regexp.MustCompile(`(\d{2,3})\.?(\d{3})?`)
	coverageDescRe = regexp.MustCompile(`\d{1,3}[.,]?\d{3}`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// CoverageValue derives the insured amount from plan naming conventions.
// A 2-3 digit number in the name is scaled by 1000 ("60" means 60,000);
// the description is a fallback. Always returns a value, zero if neither
// field yields a number.
func CoverageValue(name, description string) int {
	if m := coverageNameRe.FindString(name); m != "" {
		v, err := strconv.Atoi(strings.ReplaceAll(m, ".", ""))
		if err == nil {
			if v < 1000 {
				v *= 1000
			}
			return v
		}
	}
	if description != "" {
		if m := coverageDescRe.FindString(description); m != "" {
			v, err := strconv.Atoi(nonDigitRe.ReplaceAllString(m, ""))
			if err == nil {
				return v
			}
		}
	}
	return 0
}

// BaggageLimit maps coverage to the vendor's tiered baggage label.
func BaggageLimit(coverage int) string {
	switch {
	case coverage >= 250000:
		return "USD 3.000"
	case coverage >= 100000:
		return "USD 2.000"
	case coverage >= 60000:
		return "USD 1.500"
	default:
		return "USD 1.000"
	}
}

// CoverageLabel formats a coverage amount the way the vendor displays it,
// with dot-grouped thousands.
func CoverageLabel(coverage int) string {
	return "USD " + groupThousands(coverage)
}

// KeepPlan reports whether a plan with the given coverage survives the
// filter tier selected by origin.
func KeepPlan(origin string, coverage int) bool {
	switch origin {
	case OriginTierA:
		return coverage >= 60000 && coverage <= 1000000
	case OriginTierB:
		return coverage <= 700000
	default:
		return true
	}
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
