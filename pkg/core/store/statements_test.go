package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"financialreader/pkg/core/xbrl"
)

func statement(cik string, year int, quality float64) *xbrl.FinancialStatement {
	return &xbrl.FinancialStatement{
		CIK:              cik,
		CompanyName:      "Apple Inc.",
		FiscalYear:       year,
		FormType:         "10-K",
		FiledDate:        "2024-11-01",
		PeriodEnd:        "2024-09-28",
		IncomeStatement:  map[string]float64{"revenue": 391035000000, "net_income": 0},
		BalanceSheet:     map[string]float64{"total_assets": 364980000000},
		CashFlow:         map[string]float64{},
		DataQualityScore: quality,
	}
}

func newFileRepo(t *testing.T) *StatementRepo {
	t.Helper()
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewStatementRepo(nil, t.TempDir(), WithClock(func() time.Time { return fixed }))
}

func TestFileRepo_SaveLoad(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	in := []*xbrl.FinancialStatement{
		statement("0000320193", 2022, 0.9),
		statement("0000320193", 2024, 1),
		nil,
		statement("0000320193", 2023, 0.95),
	}
	if err := repo.Save(ctx, "aapl", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load(ctx, "0000320193")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 || got[0].FiscalYear != 2024 || got[2].FiscalYear != 2022 {
		t.Fatalf("Load order wrong: %d statements", len(got))
	}
	// A reported zero survives the round trip.
	if v, ok := got[0].Value("net_income"); !ok || v != 0 {
		t.Errorf("net_income = %v, %v", v, ok)
	}
	if got[0].IncomeStatement["revenue"] != 391035000000 {
		t.Errorf("revenue = %v", got[0].IncomeStatement["revenue"])
	}

	if _, err := os.Stat(filepath.Join(repo.dir, "0000320193", "2024.json")); err != nil {
		t.Errorf("expected record file: %v", err)
	}
}

func TestFileRepo_Upsert(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	_ = repo.Save(ctx, "AAPL", []*xbrl.FinancialStatement{statement("0000320193", 2024, 0.5)})
	_ = repo.Save(ctx, "AAPL", []*xbrl.FinancialStatement{statement("0000320193", 2024, 0.8)})

	records, err := repo.List(ctx, Filter{CIK: "0000320193"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Quality != 0.8 {
		t.Errorf("records = %+v", records)
	}
}

func TestFileRepo_LoadMissing(t *testing.T) {
	repo := newFileRepo(t)
	_, err := repo.Load(context.Background(), "0000000001")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileRepo_List(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	_ = repo.Save(ctx, "AAPL", []*xbrl.FinancialStatement{
		statement("0000320193", 2023, 0.9),
		statement("0000320193", 2024, 1),
	})
	_ = repo.Save(ctx, "MSFT", []*xbrl.FinancialStatement{
		statement("0000789019", 2024, 0.4),
	})
	// Stray files are ignored.
	_ = os.WriteFile(filepath.Join(repo.dir, "0000789019", "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(repo.dir, "0000789019", "2019.json"), []byte("{broken"), 0o644)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"ticker case-insensitive", Filter{Ticker: "msft"}, 1},
		{"year range", Filter{FromYear: 2024, ToYear: 2024}, 2},
		{"quality", Filter{MinQuality: 0.5}, 2},
		{"limit", Filter{Limit: 1}, 1},
		{"unknown cik", Filter{CIK: "0000000001"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := repo.List(ctx, Filter{})
	if all[0].CIK != "0000320193" || all[0].FiscalYear != 2024 || all[2].CIK != "0000789019" {
		t.Errorf("order = %+v", all)
	}
	if all[0].Ticker != "AAPL" || !all[0].SavedAt.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("metadata = %+v", all[0])
	}
}

func TestFileRepo_EmptyDir(t *testing.T) {
	repo := NewStatementRepo(nil, filepath.Join(t.TempDir(), "absent"))
	got, err := repo.List(context.Background(), Filter{})
	if err != nil || len(got) != 0 {
		t.Errorf("List = %v, %v", got, err)
	}
}

func TestListQuery(t *testing.T) {
	query, args, err := listQuery(Filter{CIK: "0000320193", FromYear: 2020, MinQuality: 0.5, Limit: 10})
	if err != nil {
		t.Fatalf("listQuery: %v", err)
	}
	for _, want := range []string{
		"FROM financial_statements",
		"cik = $1",
		"fiscal_year >= $2",
		"data_quality_score >= $3",
		"ORDER BY cik, fiscal_year DESC",
		"LIMIT 10",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 3 || args[0] != "0000320193" || args[1] != 2020 {
		t.Errorf("args = %v", args)
	}

	query, args, _ = listQuery(Filter{})
	if strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Errorf("unfiltered query = %s %v", query, args)
	}
}

func TestUpsertQuery(t *testing.T) {
	rec := Record{CIK: "0000320193", Ticker: "AAPL", FiscalYear: 2024}
	query, args, err := upsertQuery(rec, []byte(`{}`))
	if err != nil {
		t.Fatalf("upsertQuery: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO financial_statements") ||
		!strings.Contains(query, "ON CONFLICT (cik, fiscal_year) DO UPDATE") {
		t.Errorf("query = %s", query)
	}
	if len(args) != len(recordColumns) {
		t.Errorf("args = %d, want %d", len(args), len(recordColumns))
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrations.ReadFile("migrations/00001_financial_statements.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "PRIMARY KEY (cik, fiscal_year)") {
		t.Error("migration missing goose annotations or key")
	}
}

func TestConnect_NoURL(t *testing.T) {
	if _, err := Connect(context.Background(), ""); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Connect: %v", err)
	}
	if err := Migrate(context.Background(), ""); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Migrate: %v", err)
	}
}
