package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/budgetbee/importer/internal/domain/importer/dedupe"
	"github.com/budgetbee/importer/internal/domain/importer/mapper"
	"github.com/budgetbee/importer/internal/domain/importer/normalizer"
	"github.com/budgetbee/importer/internal/domain/importer/parser"
	"github.com/budgetbee/importer/internal/domain/importer/repository"
	"github.com/budgetbee/importer/pkg/metrics"
)

// DuplicateAction is the user's resolution for a row that matched an
// existing record.
type DuplicateAction string

const (
	ActionSkip      DuplicateAction = "skip"
	ActionUpdate    DuplicateAction = "update"
	ActionImportNew DuplicateAction = "import_new"
)

// ProcessedRow is one raw row carried through mapping, validation,
// normalization and duplicate detection. Rows are recreated, not mutated,
// when the mapping changes; only Action changes during preview.
type ProcessedRow struct {
	Raw        parser.Row
	Data       map[string]string
	Normalized map[string]any
	ImportKey  string
	Valid      bool
	Errors     []string
	Warnings   []string
	Duplicate  *dedupe.Match
	Action     DuplicateAction
}

// SectionState holds the per-section wizard state.
type SectionState struct {
	Kind             parser.Kind
	Table            *parser.ExtractedTable
	Fields           []mapper.TargetField
	Signature        string
	Mapping          mapper.Mapping
	MappingFromCache bool
	Rows             []*ProcessedRow
}

// Session is one user's in-flight import.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	State    State
	Sections map[parser.Kind]*SectionState

	// Snapshots of existing records, taken when entering preview. Staleness
	// between snapshot and commit is accepted.
	existingBills map[repository.BillKind][]dedupe.ExistingBill
	existingDebts []dedupe.ExistingDebt
}

// Section returns the state for a kind, or nil when the workbook had no such
// section.
func (s *Session) Section(kind parser.Kind) *SectionState {
	return s.Sections[kind]
}

// Counts are the per-section outcome counters, accumulated monotonically
// during commit and immutable afterward.
type Counts struct {
	Added   int
	Updated int
	Skipped int
}

// Results aggregates the three sections' counters.
type Results struct {
	Bills         Counts
	Subscriptions Counts
	Debts         Counts
}

func (r *Results) forKind(kind parser.Kind) *Counts {
	switch kind {
	case parser.KindBills:
		return &r.Bills
	case parser.KindSubscriptions:
		return &r.Subscriptions
	default:
		return &r.Debts
	}
}

// ProgressFunc receives processed/total after every committed row.
type ProgressFunc func(processed, total int)

// ImportService drives the wizard: it performs the file reads, mapping-cache
// round-trips and record-store writes, and feeds the outcomes into the pure
// wizard transitions.
type ImportService struct {
	repo     repository.ImportRepository
	mappings mapper.MappingStore
	metrics  *metrics.ImportMetrics
	logger   *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(repo repository.ImportRepository, mappings mapper.MappingStore, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:     repo,
		mappings: mappings,
		logger:   logger,
	}
}

// WithMetrics adds Prometheus instrumentation to the service.
func (s *ImportService) WithMetrics(m *metrics.ImportMetrics) *ImportService {
	s.metrics = m
	return s
}

// Analyze reads an uploaded workbook, detects its layout, extracts and
// assigns section tables, and prepares a field mapping per section — cached
// when a confirmed mapping exists for the header signature, auto-detected
// otherwise. The returned session sits at the Detect step.
func (s *ImportService) Analyze(ctx context.Context, userID uuid.UUID, fileName string, data []byte) (*Session, error) {
	wb, err := parser.ReadGrid(data)
	if err != nil {
		return nil, err
	}

	layout := parser.DetectLayout(wb.Grid)
	tables := parser.ExtractTables(wb.Grid, layout)
	sections := parser.AssignSections(tables)

	state, err := Transition(State{Step: StepUpload}, WorkbookDetected{
		FileName:  fileName,
		SheetName: wb.SheetName,
		Layout:    layout,
		Sections:  sections,
	})
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:       uuid.New(),
		UserID:   userID,
		State:    state,
		Sections: make(map[parser.Kind]*SectionState),
	}

	for _, kind := range parser.Kinds {
		table := sections.Get(kind)
		if table == nil {
			continue
		}
		session.Sections[kind] = s.prepareSection(ctx, userID, kind, table)
	}

	return session, nil
}

func (s *ImportService) prepareSection(ctx context.Context, userID uuid.UUID, kind parser.Kind, table *parser.ExtractedTable) *SectionState {
	fields := fieldsForKind(kind)
	signature := mapper.Signature(table.Headers)

	section := &SectionState{
		Kind:      kind,
		Table:     table,
		Fields:    fields,
		Signature: signature,
	}

	cached, err := s.mappings.Get(ctx, userID, signature)
	if err != nil {
		s.logger.Warn("failed to load cached mapping", "section", kind, "error", err)
	}
	if cached != nil {
		section.Mapping = cached
		section.MappingFromCache = true
	} else {
		section.Mapping = mapper.AutoDetect(table.Headers, fields)
	}
	return section
}

// BeginMapping advances Detect -> Mapping. It fails while no section was
// detected.
func (s *ImportService) BeginMapping(session *Session) error {
	state, err := Transition(session.State, SectionsAccepted{})
	if err != nil {
		return err
	}
	session.State = state
	return nil
}

// SetMapping overrides one header's target during the Mapping step. User
// overrides are taken as-is; unlike auto-detection they may double up target
// keys, and validation will surface the consequences.
func (s *ImportService) SetMapping(session *Session, kind parser.Kind, header, fieldKey string) error {
	if session.State.Step != StepMapping {
		return fmt.Errorf("%w: mapping edit at step %s", ErrInvalidTransition, session.State.Step)
	}
	section := session.Sections[kind]
	if section == nil {
		return fmt.Errorf("no %s section in this workbook", kind)
	}
	if _, ok := section.Mapping[header]; !ok {
		return fmt.Errorf("unknown header %q", header)
	}
	section.Mapping[header] = fieldKey
	return nil
}

// Preview advances Mapping -> Preview: persists the confirmed mappings,
// rebuilds every section's processed rows from the current mapping,
// snapshots existing records and runs duplicate detection. Duplicate rows
// default to Skip, everything else to ImportNew.
func (s *ImportService) Preview(ctx context.Context, session *Session) error {
	state, err := Transition(session.State, MappingsConfirmed{})
	if err != nil {
		return err
	}

	if err := s.snapshotExisting(ctx, session); err != nil {
		return err
	}

	for _, kind := range parser.Kinds {
		section := session.Sections[kind]
		if section == nil {
			continue
		}

		if err := s.mappings.Put(ctx, session.UserID, section.Signature, section.Mapping); err != nil {
			s.logger.Warn("failed to persist mapping", "section", kind, "error", err)
		}

		section.Rows = buildRows(section)
		matchDuplicates(session, section)
	}

	session.State = state
	return nil
}

func (s *ImportService) snapshotExisting(ctx context.Context, session *Session) error {
	bills, err := s.repo.ListBills(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to snapshot existing bills: %w", err)
	}
	debts, err := s.repo.ListDebts(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to snapshot existing debts: %w", err)
	}

	session.existingBills = make(map[repository.BillKind][]dedupe.ExistingBill)
	for _, bill := range bills {
		dueDay := 0
		if bill.DueDay != nil {
			dueDay = *bill.DueDay
		}
		session.existingBills[bill.Kind] = append(session.existingBills[bill.Kind], dedupe.ExistingBill{
			ID:        bill.ID,
			Name:      bill.Name,
			Frequency: bill.Frequency,
			DueDay:    dueDay,
			ImportKey: bill.ImportKey,
		})
	}

	session.existingDebts = make([]dedupe.ExistingDebt, 0, len(debts))
	for _, debt := range debts {
		session.existingDebts = append(session.existingDebts, dedupe.ExistingDebt{
			ID:           debt.ID,
			CreditorName: debt.CreditorName,
			DebtType:     debt.DebtType,
			ImportKey:    debt.ImportKey,
		})
	}
	return nil
}

// buildRows recreates the processed rows from the section's current mapping,
// preserving raw row order. Only valid rows are normalized; invalid rows
// keep their raw data so the preview can show what was attempted.
func buildRows(section *SectionState) []*ProcessedRow {
	rows := make([]*ProcessedRow, 0, len(section.Table.Rows))
	for _, raw := range section.Table.Rows {
		v := mapper.ValidateRow(raw, section.Mapping, section.Fields)
		pr := &ProcessedRow{
			Raw:      raw,
			Data:     v.Data,
			Valid:    v.Valid,
			Errors:   v.Errors,
			Warnings: v.Warnings,
			Action:   ActionImportNew,
		}
		if v.Valid {
			if section.Kind == parser.KindDebts {
				pr.Normalized = normalizer.DebtRow(v.Data)
				pr.ImportKey = normalizer.DebtRowImportKey(pr.Normalized)
			} else {
				pr.Normalized = normalizer.BillRow(v.Data)
				pr.ImportKey = normalizer.BillRowImportKey(pr.Normalized)
			}
		}
		rows = append(rows, pr)
	}
	return rows
}

// matchDuplicates runs duplicate detection for one section against the
// session's snapshot. Match row indices address the valid-only sublist.
func matchDuplicates(session *Session, section *SectionState) {
	valid := validRows(section.Rows)

	if section.Kind == parser.KindDebts {
		candidates := make([]dedupe.DebtCandidate, len(valid))
		for i, pr := range valid {
			creditor, _ := pr.Normalized["creditor_name"].(string)
			debtType, _ := pr.Normalized["debt_type"].(string)
			candidates[i] = dedupe.DebtCandidate{
				RowIndex:     i,
				CreditorName: creditor,
				DebtType:     debtType,
				ImportKey:    pr.ImportKey,
			}
		}
		applyMatches(valid, dedupe.FindDebtDuplicates(candidates, session.existingDebts))
		return
	}

	candidates := make([]dedupe.BillCandidate, len(valid))
	for i, pr := range valid {
		name, _ := pr.Normalized["name"].(string)
		frequency, _ := pr.Normalized["frequency"].(string)
		dueDay, _ := pr.Normalized["due_day"].(int)
		candidates[i] = dedupe.BillCandidate{
			RowIndex:  i,
			Name:      name,
			Frequency: frequency,
			DueDay:    dueDay,
			ImportKey: pr.ImportKey,
		}
	}
	applyMatches(valid, dedupe.FindBillDuplicates(candidates, session.existingBills[billKindFor(section.Kind)]))
}

func applyMatches(valid []*ProcessedRow, matches map[int]*dedupe.Match) {
	for i, pr := range valid {
		if m := matches[i]; m != nil {
			pr.Duplicate = m
			pr.Action = ActionSkip
		}
	}
}

// SetDuplicateAction resolves one duplicate during preview. The row index
// addresses the section's valid-only sublist, matching the indices carried
// by duplicate matches.
func (s *ImportService) SetDuplicateAction(session *Session, kind parser.Kind, rowIndex int, action DuplicateAction) error {
	if session.State.Step != StepPreview {
		return fmt.Errorf("%w: duplicate resolution at step %s", ErrInvalidTransition, session.State.Step)
	}
	section := session.Sections[kind]
	if section == nil {
		return fmt.Errorf("no %s section in this workbook", kind)
	}
	valid := validRows(section.Rows)
	if rowIndex < 0 || rowIndex >= len(valid) {
		return fmt.Errorf("row index %d out of range", rowIndex)
	}
	valid[rowIndex].Action = action
	return nil
}

// Commit runs the Importing step: every valid row, section by section in the
// fixed {bills, subscriptions, debts} order, strictly sequentially. A failed
// write folds into skipped; the error is logged but never aborts the import.
// Progress, when non-nil, fires after every row.
func (s *ImportService) Commit(ctx context.Context, session *Session, progress ProgressFunc) (*Results, error) {
	state, err := Transition(session.State, ImportStarted{})
	if err != nil {
		return nil, err
	}
	session.State = state

	total := 0
	for _, kind := range parser.Kinds {
		if section := session.Sections[kind]; section != nil {
			total += len(validRows(section.Rows))
		}
	}

	var results Results
	processed := 0

	for _, kind := range parser.Kinds {
		// No cancellation once a section's rows are in flight; the context
		// is consulted only between sections.
		if ctx.Err() != nil {
			break
		}
		section := session.Sections[kind]
		if section == nil {
			continue
		}

		counts := results.forKind(kind)
		for _, pr := range validRows(section.Rows) {
			outcome := s.commitRow(ctx, session, kind, pr)
			switch outcome {
			case "added":
				counts.Added++
			case "updated":
				counts.Updated++
			default:
				counts.Skipped++
			}
			s.metrics.ObserveRow(string(kind), outcome)
			processed++
			if progress != nil {
				progress(processed, total)
			}
		}
	}

	s.writeAudit(ctx, session, &results)
	s.metrics.ObserveImport(string(session.State.Layout))

	state, err = Transition(session.State, ImportCompleted{Results: results})
	if err != nil {
		return nil, err
	}
	session.State = state
	return &results, nil
}

func (s *ImportService) commitRow(ctx context.Context, session *Session, kind parser.Kind, pr *ProcessedRow) string {
	if pr.Duplicate != nil && pr.Action == ActionSkip {
		return "skipped"
	}

	update := pr.Duplicate != nil && pr.Action == ActionUpdate

	var err error
	if kind == parser.KindDebts {
		debt := debtFromRow(session.UserID, pr)
		if update {
			debt.ID = pr.Duplicate.ExistingID
			err = s.repo.UpdateDebt(ctx, debt)
		} else {
			err = s.repo.InsertDebt(ctx, debt)
		}
	} else {
		bill := billFromRow(session.UserID, billKindFor(kind), pr)
		if update {
			bill.ID = pr.Duplicate.ExistingID
			err = s.repo.UpdateBill(ctx, bill)
		} else {
			err = s.repo.InsertBill(ctx, bill)
		}
	}

	if err != nil {
		s.logger.Warn("row write failed, counting as skipped",
			"section", kind, "import_key", pr.ImportKey, "error", err)
		return "skipped"
	}
	if update {
		return "updated"
	}
	return "added"
}

func (s *ImportService) writeAudit(ctx context.Context, session *Session, results *Results) {
	audit := &repository.ImportAudit{
		UserID:               session.UserID,
		FileName:             session.State.FileName,
		SheetName:            session.State.SheetName,
		Layout:               string(session.State.Layout),
		BillsAdded:           results.Bills.Added,
		BillsUpdated:         results.Bills.Updated,
		BillsSkipped:         results.Bills.Skipped,
		SubscriptionsAdded:   results.Subscriptions.Added,
		SubscriptionsUpdated: results.Subscriptions.Updated,
		SubscriptionsSkipped: results.Subscriptions.Skipped,
		DebtsAdded:           results.Debts.Added,
		DebtsUpdated:         results.Debts.Updated,
		DebtsSkipped:         results.Debts.Skipped,
	}
	if bills := session.Sections[parser.KindBills]; bills != nil {
		audit.BillsMappingSignature = bills.Signature
	}
	if err := s.repo.CreateAudit(ctx, audit); err != nil {
		s.logger.Warn("failed to write import audit", "error", err)
	}
}

// Back steps the wizard back one state (Detect->Upload, Mapping->Detect,
// Preview->Mapping).
func (s *ImportService) Back(session *Session) error {
	state, err := Transition(session.State, WentBack{})
	if err != nil {
		return err
	}
	session.State = state
	return nil
}

func validRows(rows []*ProcessedRow) []*ProcessedRow {
	valid := make([]*ProcessedRow, 0, len(rows))
	for _, pr := range rows {
		if pr.Valid {
			valid = append(valid, pr)
		}
	}
	return valid
}

func fieldsForKind(kind parser.Kind) []mapper.TargetField {
	if kind == parser.KindDebts {
		return mapper.DebtFields()
	}
	return mapper.BillFields()
}

func billKindFor(kind parser.Kind) repository.BillKind {
	if kind == parser.KindSubscriptions {
		return repository.BillKindSubscription
	}
	return repository.BillKindBill
}

func billFromRow(userID uuid.UUID, kind repository.BillKind, pr *ProcessedRow) *repository.Bill {
	row := pr.Normalized
	bill := &repository.Bill{
		UserID:    userID,
		Kind:      kind,
		ImportKey: pr.ImportKey,
	}
	bill.Name, _ = row["name"].(string)
	bill.Frequency, _ = row["frequency"].(string)
	if v, ok := row["amount"].(float64); ok {
		bill.Amount = &v
	}
	if v, ok := row["due_day"].(int); ok {
		bill.DueDay = &v
	}
	if v, ok := row["provider"].(string); ok {
		bill.Provider = &v
	}
	if v, ok := row["category"].(string); ok {
		bill.Category = &v
	}
	if v, ok := row["notes"].(string); ok {
		bill.Notes = &v
	}
	if v, ok := row["autopay"].(bool); ok {
		bill.Autopay = &v
	}
	return bill
}

func debtFromRow(userID uuid.UUID, pr *ProcessedRow) *repository.Debt {
	row := pr.Normalized
	debt := &repository.Debt{
		UserID:    userID,
		ImportKey: pr.ImportKey,
	}
	debt.CreditorName, _ = row["creditor_name"].(string)
	debt.DebtType, _ = row["debt_type"].(string)
	debt.Status, _ = row["status"].(string)
	if v, ok := row["starting_balance"].(float64); ok {
		debt.StartingBalance = &v
	}
	if v, ok := row["current_balance"].(float64); ok {
		debt.CurrentBalance = &v
	}
	if v, ok := row["interest_rate"].(float64); ok {
		debt.InterestRate = &v
	}
	if v, ok := row["minimum_payment"].(float64); ok {
		debt.MinimumPayment = &v
	}
	if v, ok := row["due_day"].(int); ok {
		debt.DueDay = &v
	}
	return debt
}
