package xbrl

import (
	"fmt"
	"strings"
)

// =============================================================================
// CONCEPT TAXONOMY - canonical concepts mapped to US-GAAP tags
// =============================================================================

// ConceptDefinition maps one canonical concept to its reporting tags.
// AlternativeTags are declared in decreasing order of preference.
type ConceptDefinition struct {
	Name            string        `json:"name" yaml:"name"`
	PrimaryTag      string        `json:"primary_tag" yaml:"primary_tag"`
	AlternativeTags []string      `json:"alternative_tags,omitempty" yaml:"alternative_tags"`
	Statement       StatementType `json:"statement" yaml:"statement"`
	Unit            UnitType      `json:"unit" yaml:"unit"`
	Required        bool          `json:"required" yaml:"required"`
	Description     string        `json:"description,omitempty" yaml:"description"`
}

// Taxonomy is an immutable registry of concept definitions. It is safe for
// concurrent use once constructed; no method mutates it.
type Taxonomy struct {
	defs     []ConceptDefinition
	byName   map[string]int
	byTag    map[string]string
	required []string
}

// NewTaxonomy validates defs and builds a Taxonomy. Names are normalized to
// lower case. Duplicate names, empty primary tags and unknown statement types
// are rejected.
func NewTaxonomy(defs []ConceptDefinition) (*Taxonomy, error) {
	t := &Taxonomy{
		defs:   make([]ConceptDefinition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
		byTag:  make(map[string]string, len(defs)*2),
	}

	for _, d := range defs {
		d.Name = strings.ToLower(strings.TrimSpace(d.Name))
		if d.Name == "" {
			return nil, fmt.Errorf("%w: concept with empty name", ErrInvalidTaxonomy)
		}
		if d.PrimaryTag == "" {
			return nil, fmt.Errorf("%w: concept %q has no primary tag", ErrInvalidTaxonomy, d.Name)
		}
		if _, dup := t.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate concept %q", ErrInvalidTaxonomy, d.Name)
		}
		switch d.Statement {
		case IncomeStatement, BalanceSheet, CashFlow, Other:
		default:
			return nil, fmt.Errorf("%w: concept %q has unknown statement type %q", ErrInvalidTaxonomy, d.Name, d.Statement)
		}
		if d.Unit == "" {
			d.Unit = UnitUSD
		}

		// Own copy so callers can't mutate the registry through their slice.
		d.AlternativeTags = append([]string(nil), d.AlternativeTags...)

		t.byName[d.Name] = len(t.defs)
		t.defs = append(t.defs, d)
		if d.Required {
			t.required = append(t.required, d.Name)
		}

		// Reverse map: first declaration of a tag wins.
		for _, tag := range append([]string{d.PrimaryTag}, d.AlternativeTags...) {
			if _, taken := t.byTag[tag]; !taken {
				t.byTag[tag] = d.Name
			}
		}
	}

	return t, nil
}

// MustTaxonomy is NewTaxonomy that panics on invalid input. Intended for
// static tables.
func MustTaxonomy(defs []ConceptDefinition) *Taxonomy {
	t, err := NewTaxonomy(defs)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the definition for concept.
func (t *Taxonomy) Lookup(concept string) (ConceptDefinition, bool) {
	i, ok := t.byName[strings.ToLower(concept)]
	if !ok {
		return ConceptDefinition{}, false
	}
	d := t.defs[i]
	d.AlternativeTags = append([]string(nil), d.AlternativeTags...)
	return d, true
}

// Tags returns the primary tag and alternates for concept.
func (t *Taxonomy) Tags(concept string) (primary string, alternatives []string, ok bool) {
	d, ok := t.Lookup(concept)
	if !ok {
		return "", nil, false
	}
	return d.PrimaryTag, d.AlternativeTags, true
}

// StatementOf returns the statement a concept belongs to.
func (t *Taxonomy) StatementOf(concept string) (StatementType, bool) {
	i, ok := t.byName[strings.ToLower(concept)]
	if !ok {
		return "", false
	}
	return t.defs[i].Statement, true
}

// ConceptForTag maps a reporting tag back to its canonical concept.
func (t *Taxonomy) ConceptForTag(tag string) (string, bool) {
	c, ok := t.byTag[tag]
	return c, ok
}

// Concepts returns all concept names in declaration order.
func (t *Taxonomy) Concepts() []string {
	out := make([]string, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.Name
	}
	return out
}

// ConceptsByStatement returns concept names of one statement type, in declaration order.
func (t *Taxonomy) ConceptsByStatement(st StatementType) []string {
	var out []string
	for _, d := range t.defs {
		if d.Statement == st {
			out = append(out, d.Name)
		}
	}
	return out
}

// RequiredConcepts returns the required concept names in declaration order.
func (t *Taxonomy) RequiredConcepts() []string {
	return append([]string(nil), t.required...)
}

// IsRequired reports whether concept counts toward the quality score.
func (t *Taxonomy) IsRequired(concept string) bool {
	d, ok := t.Lookup(concept)
	return ok && d.Required
}

// Position returns the declaration index of concept, or -1.
func (t *Taxonomy) Position(concept string) int {
	if i, ok := t.byName[strings.ToLower(concept)]; ok {
		return i
	}
	return -1
}

// Len returns the number of concepts.
func (t *Taxonomy) Len() int { return len(t.defs) }

// =============================================================================
// DEFAULT US-GAAP TAXONOMY
// =============================================================================

// DefaultTaxonomy returns a fresh Taxonomy built from DefaultConcepts.
func DefaultTaxonomy() *Taxonomy {
	return MustTaxonomy(DefaultConcepts())
}

// DefaultConcepts returns the standard concept table. A new slice is returned
// on each call so callers may extend it before building their own Taxonomy.
func DefaultConcepts() []ConceptDefinition {
	return []ConceptDefinition{
		// --- Income statement ---
		{Name: "revenue", PrimaryTag: "RevenueFromContractWithCustomerExcludingAssessedTax", AlternativeTags: []string{"Revenues", "SalesRevenueNet"}, Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "Total revenue/net sales"},
		{Name: "cost_of_goods_sold", PrimaryTag: "CostOfGoodsAndServicesSold", AlternativeTags: []string{"CostOfRevenue", "CostOfGoodsSold"}, Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "Direct costs of producing goods/services"},
		{Name: "gross_profit", PrimaryTag: "GrossProfit", Statement: IncomeStatement, Unit: UnitUSD, Description: "Revenue minus cost of goods sold"},
		{Name: "research_and_development", PrimaryTag: "ResearchAndDevelopmentExpense", AlternativeTags: []string{"ResearchAndDevelopmentExpenseExcludingAcquiredInProcessCost"}, Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "R&D expenses"},
		{Name: "selling_general_administrative", PrimaryTag: "SellingGeneralAndAdministrativeExpense", AlternativeTags: []string{"SellingAndMarketingExpense", "GeneralAndAdministrativeExpense"}, Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "SG&A expenses"},
		{Name: "operating_expenses", PrimaryTag: "OperatingExpenses", AlternativeTags: []string{"CostsAndExpenses"}, Statement: IncomeStatement, Unit: UnitUSD, Description: "Total operating expenses"},
		{Name: "operating_income", PrimaryTag: "OperatingIncomeLoss", Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "Income from operations"},
		{Name: "interest_expense", PrimaryTag: "InterestExpense", AlternativeTags: []string{"InterestExpenseNonoperating"}, Statement: IncomeStatement, Unit: UnitUSD, Description: "Interest expense"},
		{Name: "income_before_tax", PrimaryTag: "IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest", AlternativeTags: []string{"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments"}, Statement: IncomeStatement, Unit: UnitUSD, Description: "Pre-tax income"},
		{Name: "income_tax_expense", PrimaryTag: "IncomeTaxExpenseBenefit", Statement: IncomeStatement, Unit: UnitUSD, Description: "Income tax expense/benefit"},
		{Name: "net_income", PrimaryTag: "NetIncomeLoss", AlternativeTags: []string{"ProfitLoss"}, Statement: IncomeStatement, Unit: UnitUSD, Required: true, Description: "Net income/loss"},
		{Name: "earnings_per_share_basic", PrimaryTag: "EarningsPerShareBasic", Statement: IncomeStatement, Unit: UnitPerShare, Required: true, Description: "Basic earnings per share"},
		{Name: "earnings_per_share_diluted", PrimaryTag: "EarningsPerShareDiluted", AlternativeTags: []string{"EarningsPerShareBasicAndDiluted"}, Statement: IncomeStatement, Unit: UnitPerShare, Required: true, Description: "Diluted earnings per share"},
		{Name: "weighted_average_shares_diluted", PrimaryTag: "WeightedAverageNumberOfDilutedSharesOutstanding", Statement: IncomeStatement, Unit: UnitShares, Description: "Diluted weighted average shares"},

		// --- Balance sheet ---
		{Name: "cash_and_equivalents", PrimaryTag: "CashAndCashEquivalentsAtCarryingValue", AlternativeTags: []string{"CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents"}, Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Cash and cash equivalents"},
		{Name: "short_term_investments", PrimaryTag: "ShortTermInvestments", AlternativeTags: []string{"MarketableSecuritiesCurrent", "AvailableForSaleSecuritiesDebtSecuritiesCurrent"}, Statement: BalanceSheet, Unit: UnitUSD, Description: "Short-term investments"},
		{Name: "accounts_receivable", PrimaryTag: "AccountsReceivableNetCurrent", Statement: BalanceSheet, Unit: UnitUSD, Description: "Net accounts receivable"},
		{Name: "inventory", PrimaryTag: "InventoryNet", AlternativeTags: []string{"Inventory"}, Statement: BalanceSheet, Unit: UnitUSD, Description: "Inventory"},
		{Name: "current_assets", PrimaryTag: "AssetsCurrent", Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Total current assets"},
		{Name: "property_plant_equipment", PrimaryTag: "PropertyPlantAndEquipmentNet", Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Net property, plant & equipment"},
		{Name: "goodwill", PrimaryTag: "Goodwill", Statement: BalanceSheet, Unit: UnitUSD, Description: "Goodwill"},
		{Name: "intangible_assets", PrimaryTag: "IntangibleAssetsNetExcludingGoodwill", AlternativeTags: []string{"FiniteLivedIntangibleAssetsNet"}, Statement: BalanceSheet, Unit: UnitUSD, Description: "Intangible assets excluding goodwill"},
		{Name: "total_assets", PrimaryTag: "Assets", Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Total assets"},
		{Name: "accounts_payable", PrimaryTag: "AccountsPayableCurrent", Statement: BalanceSheet, Unit: UnitUSD, Description: "Current accounts payable"},
		{Name: "deferred_revenue", PrimaryTag: "ContractWithCustomerLiabilityCurrent", AlternativeTags: []string{"DeferredRevenueCurrent"}, Statement: BalanceSheet, Unit: UnitUSD, Description: "Current deferred revenue"},
		{Name: "current_liabilities", PrimaryTag: "LiabilitiesCurrent", Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Total current liabilities"},
		{Name: "long_term_debt", PrimaryTag: "LongTermDebt", AlternativeTags: []string{"LongTermDebtNoncurrent"}, Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Long-term debt"},
		{Name: "total_liabilities", PrimaryTag: "Liabilities", Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Total liabilities"},
		{Name: "shareholders_equity", PrimaryTag: "StockholdersEquity", AlternativeTags: []string{"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest"}, Statement: BalanceSheet, Unit: UnitUSD, Required: true, Description: "Total shareholders' equity"},
		{Name: "retained_earnings", PrimaryTag: "RetainedEarningsAccumulatedDeficit", Statement: BalanceSheet, Unit: UnitUSD, Description: "Retained earnings"},
		{Name: "common_shares_outstanding", PrimaryTag: "CommonStockSharesOutstanding", Statement: BalanceSheet, Unit: UnitShares, Description: "Common shares outstanding"},

		// --- Cash flow ---
		{Name: "operating_cash_flow", PrimaryTag: "NetCashProvidedByUsedInOperatingActivities", Statement: CashFlow, Unit: UnitUSD, Required: true, Description: "Net cash from operating activities"},
		{Name: "investing_cash_flow", PrimaryTag: "NetCashProvidedByUsedInInvestingActivities", Statement: CashFlow, Unit: UnitUSD, Required: true, Description: "Net cash from investing activities"},
		{Name: "financing_cash_flow", PrimaryTag: "NetCashProvidedByUsedInFinancingActivities", Statement: CashFlow, Unit: UnitUSD, Required: true, Description: "Net cash from financing activities"},
		{Name: "capital_expenditures", PrimaryTag: "PaymentsToAcquirePropertyPlantAndEquipment", AlternativeTags: []string{"CapitalExpenditures"}, Statement: CashFlow, Unit: UnitUSD, Required: true, Description: "Capital expenditures (CapEx)"},
		{Name: "depreciation_amortization", PrimaryTag: "DepreciationDepletionAndAmortization", AlternativeTags: []string{"Depreciation", "DepreciationAndAmortization"}, Statement: CashFlow, Unit: UnitUSD, Description: "Depreciation and amortization"},
		{Name: "stock_based_compensation", PrimaryTag: "ShareBasedCompensation", AlternativeTags: []string{"AllocatedShareBasedCompensationExpense"}, Statement: CashFlow, Unit: UnitUSD, Description: "Stock-based compensation"},
		{Name: "dividends_paid", PrimaryTag: "PaymentsOfDividendsCommonStock", AlternativeTags: []string{"PaymentsOfDividends"}, Statement: CashFlow, Unit: UnitUSD, Description: "Dividends paid"},
		{Name: "stock_repurchases", PrimaryTag: "PaymentsForRepurchaseOfCommonStock", Statement: CashFlow, Unit: UnitUSD, Description: "Stock repurchases/buybacks"},
	}
}
