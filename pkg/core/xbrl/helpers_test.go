package xbrl

import (
	"time"
)

// fixedNow pins the extraction window to [2015, 2025].
func fixedNow() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }

// point builds a FactPoint with a valid value.
func point(val float64, start, end, form, filed string) FactPoint {
	return FactPoint{Val: Float(val), Start: start, End: end, Form: form, Filed: filed}
}

// factsBuilder assembles a CompanyFacts payload tag by tag.
type factsBuilder struct {
	facts *CompanyFacts
}

func newFacts(cik int, name string) *factsBuilder {
	return &factsBuilder{facts: &CompanyFacts{
		CIK:        cik,
		EntityName: name,
		Facts:      map[string]map[string]TagFacts{NamespaceUSGAAP: {}},
	}}
}

func (b *factsBuilder) add(tag, unit string, pts ...FactPoint) *factsBuilder {
	ns := b.facts.Facts[NamespaceUSGAAP]
	tf, ok := ns[tag]
	if !ok {
		tf = TagFacts{Units: map[string][]FactPoint{}}
	}
	tf.Units[unit] = append(tf.Units[unit], pts...)
	ns[tag] = tf
	return b
}

func (b *factsBuilder) build() *CompanyFacts { return b.facts }

// annual adds one 10-K point per year for tag, ending Sep 30 and filed the
// following Nov 1.
func (b *factsBuilder) annual(tag string, values map[int]float64) *factsBuilder {
	for year, v := range values {
		end := time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
		start := end.AddDate(-1, 0, 1)
		filed := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
		b.add(tag, "USD", point(v, start.Format(DateLayout), end.Format(DateLayout), FormAnnual, filed.Format(DateLayout)))
	}
	return b
}

// completeYear adds every required concept's primary tag for year with value v.
func (b *factsBuilder) completeYear(tax *Taxonomy, year int, v float64) *factsBuilder {
	for _, c := range tax.RequiredConcepts() {
		d, _ := tax.Lookup(c)
		b.annual(d.PrimaryTag, map[int]float64{year: v})
	}
	return b
}

func newTestParser(tax *Taxonomy) *Parser {
	return NewParser(tax, WithClock(fixedNow))
}

func ptr(v float64) *float64 { return &v }
