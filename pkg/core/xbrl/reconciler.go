package xbrl

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// PERIOD RECONCILER - one authoritative filing per fiscal year
// =============================================================================

// FiscalYearEndMonthThreshold is the earliest period-end month that is taken
// as a fiscal year end for non-10-K records. Any 10-K record is accepted
// regardless of month. This is a heuristic: quarterly-only filers whose fiscal
// year ends before September are not classified.
const FiscalYearEndMonthThreshold = time.September

// FiscalYearOf assigns a fiscal year to a record. ok is false when the end
// date does not parse or the record does not look like a fiscal year end.
func FiscalYearOf(r RawFactRecord) (year int, ok bool) {
	end := r.EndDate
	if end.IsZero() {
		if end, ok = ParseDate(r.End); !ok {
			return 0, false
		}
	}
	if end.Month() >= FiscalYearEndMonthThreshold || r.Form == FormAnnual {
		return end.Year(), true
	}
	return 0, false
}

// Reconciler groups records into fiscal years and selects, per year, the
// records of the single most recent filing of the preferred form.
type Reconciler struct {
	Taxonomy *Taxonomy
	Logger   *zap.Logger
}

// NewReconciler creates a reconciler. tax is used only to order output
// records; it may be nil.
func NewReconciler(tax *Taxonomy) *Reconciler {
	return &Reconciler{Taxonomy: tax}
}

// Reconcile returns one ResolvedYearFacts per fiscal year, ascending by year.
// Within a year every record has the same FiledDate and Form, and each
// concept appears at most once.
func (r *Reconciler) Reconcile(records []RawFactRecord) ([]ResolvedYearFacts, Diagnostics) {
	var diag Diagnostics
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	byYear := make(map[int][]RawFactRecord)
	for _, rec := range records {
		year, ok := FiscalYearOf(rec)
		if !ok {
			diag.Unclassified++
			continue
		}
		byYear[year] = append(byYear[year], rec)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]ResolvedYearFacts, 0, len(years))
	for _, year := range years {
		group := byYear[year]

		form := FormAnnual
		preferred := filterForm(group, FormAnnual)
		if len(preferred) == 0 {
			form = FormQuarterly
			preferred = filterForm(group, FormQuarterly)
		}
		if len(preferred) == 0 {
			diag.Superseded += len(group)
			continue
		}

		latest := preferred[0].FiledDate
		for _, rec := range preferred[1:] {
			if rec.FiledDate > latest {
				latest = rec.FiledDate
			}
		}

		var sameFiling []RawFactRecord
		for _, rec := range preferred {
			if rec.FiledDate == latest {
				sameFiling = append(sameFiling, rec)
			}
		}
		diag.Superseded += len(group) - len(sameFiling)

		deduped, dropped := r.dedupe(sameFiling)
		diag.DuplicatesResolved += dropped

		log.Debug("fiscal year reconciled",
			zap.Int("fiscal_year", year), zap.String("form", form),
			zap.String("filed", latest), zap.Int("records", len(deduped)))

		out = append(out, ResolvedYearFacts{
			FiscalYear: year,
			FiledDate:  latest,
			Form:       form,
			Records:    deduped,
		})
	}

	return out, diag
}

func filterForm(recs []RawFactRecord, form string) []RawFactRecord {
	var out []RawFactRecord
	for _, r := range recs {
		if r.Form == form {
			out = append(out, r)
		}
	}
	return out
}

// dedupe keeps one record per concept using preferRecord, then orders the
// result by taxonomy position (or name when no taxonomy is set).
func (r *Reconciler) dedupe(recs []RawFactRecord) ([]RawFactRecord, int) {
	best := make(map[string]RawFactRecord, len(recs))
	dropped := 0
	for _, rec := range recs {
		cur, seen := best[rec.Concept]
		if !seen {
			best[rec.Concept] = rec
			continue
		}
		dropped++
		if preferRecord(rec, cur) {
			best[rec.Concept] = rec
		}
	}

	out := make([]RawFactRecord, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if r.Taxonomy != nil {
			pi, pj := r.Taxonomy.Position(out[i].Concept), r.Taxonomy.Position(out[j].Concept)
			if pi != pj {
				return pi < pj
			}
		}
		return out[i].Concept < out[j].Concept
	})
	return out, dropped
}

// preferRecord reports whether a should replace b when both report the same
// concept in the same filing. Order of precedence:
//  1. later period end
//  2. longer period (earlier start; instants count as zero length)
//  3. carries an SEC frame
//  4. tag, unit, accession in lexical order
//  5. larger value
func preferRecord(a, b RawFactRecord) bool {
	if !a.EndDate.Equal(b.EndDate) {
		return a.EndDate.After(b.EndDate)
	}
	if a.End != b.End {
		return a.End > b.End
	}
	da, db := duration(a), duration(b)
	if da != db {
		return da > db
	}
	if (a.Frame != "") != (b.Frame != "") {
		return a.Frame != ""
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	if a.Unit != b.Unit {
		return a.Unit < b.Unit
	}
	if a.Accession != b.Accession {
		return a.Accession < b.Accession
	}
	return a.Value > b.Value
}

func duration(r RawFactRecord) time.Duration {
	start, ok := ParseDate(r.Start)
	if !ok {
		return 0
	}
	end := r.EndDate
	if end.IsZero() {
		if end, ok = ParseDate(r.End); !ok {
			return 0
		}
	}
	return end.Sub(start)
}
