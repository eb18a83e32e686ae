package xbrl

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// FACT EXTRACTOR - raw per-tag series -> RawFactRecord
// =============================================================================

// DefaultWindowYears is the look-back used when none is configured.
const DefaultWindowYears = 10

// Extractor turns the us-gaap series of a payload into RawFactRecords for
// every concept the taxonomy can resolve.
type Extractor struct {
	Taxonomy *Taxonomy
	// Years bounds period end dates to [now.Year()-Years, now.Year()].
	Years  int
	Now    func() time.Time
	Logger *zap.Logger
}

// NewExtractor creates an extractor with a wall clock and no-op logger.
func NewExtractor(tax *Taxonomy, years int) *Extractor {
	return &Extractor{Taxonomy: tax, Years: years}
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// Window returns the inclusive [from, to] calendar-year window.
func (e *Extractor) Window() (from, to int) {
	years := e.Years
	if years <= 0 {
		years = DefaultWindowYears
	}
	to = e.now().Year()
	return to - years, to
}

// Extract walks usGAAP and emits one record per surviving data point.
// Skipped points are counted in the returned Diagnostics, never returned as errors.
func (e *Extractor) Extract(usGAAP map[string]TagFacts) ([]RawFactRecord, Diagnostics) {
	var diag Diagnostics
	log := e.logger()

	available := make(TagSet, len(usGAAP))
	for tag := range usGAAP {
		available[tag] = struct{}{}
	}

	from, to := e.Window()
	var records []RawFactRecord

	for _, concept := range e.Taxonomy.Concepts() {
		tag, ok := Resolve(e.Taxonomy, available, concept)
		if !ok {
			diag.UnresolvedConcepts = append(diag.UnresolvedConcepts, concept)
			continue
		}
		diag.ConceptsResolved++

		units := usGAAP[tag].Units
		unitNames := make([]string, 0, len(units))
		for u := range units {
			unitNames = append(unitNames, u)
		}
		sort.Strings(unitNames)

		for _, unit := range unitNames {
			for _, p := range units[unit] {
				diag.PointsSeen++

				if p.Form != FormAnnual && p.Form != FormQuarterly {
					diag.SkippedForm++
					continue
				}
				end, ok := ParseDate(p.End)
				if !ok {
					diag.SkippedDate++
					log.Debug("skipping point with unparseable end date",
						zap.String("concept", concept), zap.String("tag", tag), zap.String("end", p.End))
					continue
				}
				if y := end.Year(); y < from || y > to {
					diag.SkippedWindow++
					continue
				}
				if !p.Val.Valid {
					diag.SkippedValue++
					log.Debug("skipping point with missing value",
						zap.String("concept", concept), zap.String("tag", tag), zap.String("end", p.End))
					continue
				}

				records = append(records, RawFactRecord{
					Concept:   concept,
					Tag:       tag,
					Unit:      unit,
					Value:     p.Val.Value,
					Start:     p.Start,
					End:       p.End,
					EndDate:   end,
					Form:      p.Form,
					FiledDate: p.Filed,
					Frame:     p.Frame,
					Accession: p.Accn,
				})
			}
		}
	}

	diag.PointsExtracted = len(records)
	log.Debug("extraction finished",
		zap.Int("concepts_resolved", diag.ConceptsResolved),
		zap.Int("unresolved", len(diag.UnresolvedConcepts)),
		zap.Int("records", len(records)))

	return records, diag
}
