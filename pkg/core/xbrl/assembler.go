package xbrl

// =============================================================================
// STATEMENT ASSEMBLER
// =============================================================================

// Assembler partitions a fiscal year's facts into statements and scores them.
type Assembler struct {
	Taxonomy *Taxonomy
	// KeepRawPoints copies the source records onto each statement.
	KeepRawPoints bool
}

// NewAssembler creates an assembler for tax.
func NewAssembler(tax *Taxonomy) *Assembler {
	return &Assembler{Taxonomy: tax}
}

// Assemble builds the FinancialStatement for one fiscal year. ok is false
// when year has no records that map to a known concept; no placeholder
// statement is produced in that case.
func (a *Assembler) Assemble(cik, companyName string, year ResolvedYearFacts) (*FinancialStatement, bool) {
	if len(year.Records) == 0 {
		return nil, false
	}

	stmt := &FinancialStatement{
		CIK:             cik,
		CompanyName:     companyName,
		FiscalYear:      year.FiscalYear,
		FormType:        year.Form,
		FiledDate:       year.FiledDate,
		IncomeStatement: make(map[string]float64),
		BalanceSheet:    make(map[string]float64),
		CashFlow:        make(map[string]float64),
	}

	found := make(map[string]bool, len(year.Records))
	var used []RawFactRecord
	for _, rec := range year.Records {
		st, known := a.Taxonomy.StatementOf(rec.Concept)
		if !known {
			continue
		}
		switch st {
		case IncomeStatement:
			stmt.IncomeStatement[rec.Concept] = rec.Value
		case BalanceSheet:
			stmt.BalanceSheet[rec.Concept] = rec.Value
		case CashFlow:
			stmt.CashFlow[rec.Concept] = rec.Value
		default:
			// Other-statement concepts have no home in the three mappings.
			continue
		}
		found[rec.Concept] = true
		used = append(used, rec)
	}

	if len(used) == 0 {
		return nil, false
	}

	if stmt.FormType == "" {
		stmt.FormType = used[0].Form
	}
	stmt.PeriodEnd = modalEndDate(used)
	stmt.DataQualityScore, stmt.MissingRequired = a.Score(found)
	if a.KeepRawPoints {
		stmt.RawDataPoints = append([]RawFactRecord(nil), used...)
	}

	return stmt, true
}

// Score computes |required found| / |required| and lists the missing
// required concepts. A taxonomy with no required concepts scores 0.
func (a *Assembler) Score(found map[string]bool) (float64, []string) {
	required := a.Taxonomy.RequiredConcepts()
	if len(required) == 0 {
		return 0, nil
	}
	var missing []string
	hits := 0
	for _, c := range required {
		if found[c] {
			hits++
		} else {
			missing = append(missing, c)
		}
	}
	return float64(hits) / float64(len(required)), missing
}

// modalEndDate returns the most common end date; ties go to the later date.
func modalEndDate(recs []RawFactRecord) string {
	counts := make(map[string]int, len(recs))
	best, bestN := "", 0
	for _, r := range recs {
		counts[r.End]++
	}
	for end, n := range counts {
		if n > bestN || (n == bestN && end > best) {
			best, bestN = end, n
		}
	}
	return best
}
