// Package e2etest exercises the import wizard end to end, from workbook
// bytes through analysis, mapping, preview and commit.
package e2etest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/budgetbee/importer/internal/domain/importer/mapper"
	"github.com/budgetbee/importer/internal/domain/importer/parser"
	"github.com/budgetbee/importer/internal/domain/importer/repository"
	"github.com/budgetbee/importer/internal/domain/importer/service"
)

type memoryRepo struct {
	bills  []*repository.Bill
	debts  []*repository.Debt
	audits []*repository.ImportAudit
}

func (m *memoryRepo) ListBills(ctx context.Context, userID uuid.UUID) ([]*repository.Bill, error) {
	var out []*repository.Bill
	for _, b := range m.bills {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListDebts(ctx context.Context, userID uuid.UUID) ([]*repository.Debt, error) {
	var out []*repository.Debt
	for _, d := range m.debts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertBill(ctx context.Context, bill *repository.Bill) error {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	m.bills = append(m.bills, bill)
	return nil
}

func (m *memoryRepo) UpdateBill(ctx context.Context, bill *repository.Bill) error {
	for i, b := range m.bills {
		if b.ID == bill.ID {
			bill.UserID = b.UserID
			m.bills[i] = bill
			return nil
		}
	}
	return errors.New("bill not found")
}

func (m *memoryRepo) InsertDebt(ctx context.Context, debt *repository.Debt) error {
	if debt.ID == uuid.Nil {
		debt.ID = uuid.New()
	}
	m.debts = append(m.debts, debt)
	return nil
}

func (m *memoryRepo) UpdateDebt(ctx context.Context, debt *repository.Debt) error {
	for i, d := range m.debts {
		if d.ID == debt.ID {
			debt.UserID = d.UserID
			m.debts[i] = debt
			return nil
		}
	}
	return errors.New("debt not found")
}

func (m *memoryRepo) CreateAudit(ctx context.Context, audit *repository.ImportAudit) error {
	m.audits = append(m.audits, audit)
	return nil
}

type memoryStore struct {
	mappings map[uuid.UUID]map[string]mapper.Mapping
}

func (m *memoryStore) Get(ctx context.Context, userID uuid.UUID, signature string) (mapper.Mapping, error) {
	return m.mappings[userID][signature], nil
}

func (m *memoryStore) Put(ctx context.Context, userID uuid.UUID, signature string, mp mapper.Mapping) error {
	if m.mappings == nil {
		m.mappings = make(map[uuid.UUID]map[string]mapper.Mapping)
	}
	if m.mappings[userID] == nil {
		m.mappings[userID] = make(map[string]mapper.Mapping)
	}
	m.mappings[userID][signature] = mp
	return nil
}

func buildWorkbook(t *testing.T, sheet string, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestSectionLayoutImport drives the full wizard over a section-heading
// workbook holding bills, subscriptions and debts.
func TestSectionLayoutImport(t *testing.T) {
	data := buildWorkbook(t, "Settings", [][]string{
		{"Bills", "", "", ""},
		{"Name", "Amount", "Frequency", "Due Day"},
		{"Council Tax", "£180.00", "Monthly", "1st"},
		{"Energy", "95.50", "monthly", "15"},
		{"", "", "", ""},
		{"Subscriptions", "", "", ""},
		{"Name", "Cost", "Billing Cycle", "Payment Day"},
		{"Netflix", "15.99", "Monthly", "20"},
		{"", "", "", ""},
		{"Debts", "", "", ""},
		{"Creditor", "Type", "Balance", "Min Payment"},
		{"Barclaycard", "Credit Card", "£2,500.00", "75"},
	})

	repo := &memoryRepo{}
	store := &memoryStore{}
	svc := service.NewImportService(repo, store, testLogger())
	ctx := context.Background()
	userID := uuid.New()

	session, err := svc.Analyze(ctx, userID, "budget.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, parser.LayoutSectionTables, session.State.Layout)
	require.NotNil(t, session.Section(parser.KindBills))
	require.NotNil(t, session.Section(parser.KindSubscriptions))
	require.NotNil(t, session.Section(parser.KindDebts))

	require.NoError(t, svc.BeginMapping(session))
	require.NoError(t, svc.Preview(ctx, session))

	var progress []int
	results, err := svc.Commit(ctx, session, func(processed, total int) {
		progress = append(progress, processed)
		assert.Equal(t, 4, total)
	})
	require.NoError(t, err)

	assert.Equal(t, service.Counts{Added: 2}, results.Bills)
	assert.Equal(t, service.Counts{Added: 1}, results.Subscriptions)
	assert.Equal(t, service.Counts{Added: 1}, results.Debts)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	// Subscription rows land in the bills collection with their own kind.
	require.Len(t, repo.bills, 3)
	kinds := map[repository.BillKind]int{}
	for _, b := range repo.bills {
		kinds[b.Kind]++
	}
	assert.Equal(t, 2, kinds[repository.BillKindBill])
	assert.Equal(t, 1, kinds[repository.BillKindSubscription])

	require.Len(t, repo.debts, 1)
	assert.Equal(t, "credit_card", repo.debts[0].DebtType)
	assert.Equal(t, "barclaycard|credit_card", repo.debts[0].ImportKey)

	require.Len(t, repo.audits, 1)
	audit := repo.audits[0]
	assert.Equal(t, "budget.xlsx", audit.FileName)
	assert.Equal(t, string(parser.LayoutSectionTables), audit.Layout)
	assert.Equal(t, 2, audit.BillsAdded)
	assert.Equal(t, 1, audit.SubscriptionsAdded)
	assert.Equal(t, 1, audit.DebtsAdded)
}

// TestCategoryLayoutImport drives the wizard over a single table whose
// category column splits rows into sections.
func TestCategoryLayoutImport(t *testing.T) {
	data := buildWorkbook(t, "settings", [][]string{
		{"Name", "Category", "Amount", "Frequency", "Due Day"},
		{"Rent", "Bills", "1200", "Monthly", "1"},
		{"Spotify", "Subscriptions", "10.99", "Monthly", "5"},
		{"Council Tax", "Bills", "180", "Monthly", "1"},
	})

	repo := &memoryRepo{}
	svc := service.NewImportService(repo, &memoryStore{}, testLogger())
	ctx := context.Background()
	userID := uuid.New()

	session, err := svc.Analyze(ctx, userID, "budget.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, parser.LayoutCategoryTable, session.State.Layout)

	bills := session.Section(parser.KindBills)
	require.NotNil(t, bills)
	assert.Len(t, bills.Table.Rows, 2)

	require.NoError(t, svc.BeginMapping(session))
	require.NoError(t, svc.Preview(ctx, session))

	results, err := svc.Commit(ctx, session, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Bills.Added)
	assert.Equal(t, 1, results.Subscriptions.Added)
}

// TestReimportSkipsDuplicates imports the same workbook twice; the second
// pass must classify every row as a duplicate and skip it by default.
func TestReimportSkipsDuplicates(t *testing.T) {
	data := buildWorkbook(t, "Settings", [][]string{
		{"Bills", ""},
		{"Name", "Amount", "Frequency", "Due Day"},
		{"Council Tax", "180", "Monthly", "1"},
	})

	repo := &memoryRepo{}
	store := &memoryStore{}
	svc := service.NewImportService(repo, store, testLogger())
	ctx := context.Background()
	userID := uuid.New()

	runImport := func() *service.Results {
		session, err := svc.Analyze(ctx, userID, "budget.xlsx", data)
		require.NoError(t, err)
		require.NoError(t, svc.BeginMapping(session))
		require.NoError(t, svc.Preview(ctx, session))
		results, err := svc.Commit(ctx, session, nil)
		require.NoError(t, err)
		return results
	}

	first := runImport()
	assert.Equal(t, service.Counts{Added: 1}, first.Bills)

	second := runImport()
	assert.Equal(t, service.Counts{Skipped: 1}, second.Bills)
	assert.Len(t, repo.bills, 1, "no duplicate record created")
}

// TestMappingCacheRoundTrip confirms a committed mapping is reused on the
// next upload with the same headers.
func TestMappingCacheRoundTrip(t *testing.T) {
	data := buildWorkbook(t, "Settings", [][]string{
		{"Bills", ""},
		{"Name", "Amount", "Frequency", "Due Day"},
		{"Council Tax", "180", "Monthly", "1"},
	})

	store := &memoryStore{}
	svc := service.NewImportService(&memoryRepo{}, store, testLogger())
	ctx := context.Background()
	userID := uuid.New()

	session, err := svc.Analyze(ctx, userID, "budget.xlsx", data)
	require.NoError(t, err)
	assert.False(t, session.Section(parser.KindBills).MappingFromCache)

	require.NoError(t, svc.BeginMapping(session))
	require.NoError(t, svc.Preview(ctx, session))

	again, err := svc.Analyze(ctx, userID, "budget-v2.xlsx", data)
	require.NoError(t, err)
	assert.True(t, again.Section(parser.KindBills).MappingFromCache)

	other, err := svc.Analyze(ctx, uuid.New(), "budget.xlsx", data)
	require.NoError(t, err)
	assert.False(t, other.Section(parser.KindBills).MappingFromCache,
		"mappings are scoped per user")
}
