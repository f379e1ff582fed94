package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it too.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresImportRepository implements ImportRepository using PostgreSQL.
type PostgresImportRepository struct {
	db DB
}

// NewPostgresImportRepository creates a new PostgreSQL import repository.
func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// ListBills returns all of a user's bills and subscriptions.
func (r *PostgresImportRepository) ListBills(ctx context.Context, userID uuid.UUID) ([]*Bill, error) {
	query := `
		SELECT id, user_id, kind, name, amount, frequency, due_day, provider, category, notes, autopay, import_key, created_at, updated_at
		FROM bills
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*Bill
	for rows.Next() {
		bill := &Bill{}
		err := rows.Scan(
			&bill.ID,
			&bill.UserID,
			&bill.Kind,
			&bill.Name,
			&bill.Amount,
			&bill.Frequency,
			&bill.DueDay,
			&bill.Provider,
			&bill.Category,
			&bill.Notes,
			&bill.Autopay,
			&bill.ImportKey,
			&bill.CreatedAt,
			&bill.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// ListDebts returns all of a user's debts.
func (r *PostgresImportRepository) ListDebts(ctx context.Context, userID uuid.UUID) ([]*Debt, error) {
	query := `
		SELECT id, user_id, creditor_name, debt_type, starting_balance, current_balance, interest_rate, minimum_payment, due_day, status, notes, import_key, created_at, updated_at
		FROM debts
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	var debts []*Debt
	for rows.Next() {
		debt := &Debt{}
		err := rows.Scan(
			&debt.ID,
			&debt.UserID,
			&debt.CreditorName,
			&debt.DebtType,
			&debt.StartingBalance,
			&debt.CurrentBalance,
			&debt.InterestRate,
			&debt.MinimumPayment,
			&debt.DueDay,
			&debt.Status,
			&debt.Notes,
			&debt.ImportKey,
			&debt.CreatedAt,
			&debt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, debt)
	}
	return debts, rows.Err()
}

// InsertBill inserts a new bill carrying its import key.
func (r *PostgresImportRepository) InsertBill(ctx context.Context, bill *Bill) error {
	query := `
		INSERT INTO bills (id, user_id, kind, name, amount, frequency, due_day, provider, category, notes, autopay, import_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		bill.ID,
		bill.UserID,
		bill.Kind,
		bill.Name,
		bill.Amount,
		bill.Frequency,
		bill.DueDay,
		bill.Provider,
		bill.Category,
		bill.Notes,
		bill.Autopay,
		bill.ImportKey,
	).Scan(&bill.CreatedAt, &bill.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// UpdateBill overwrites an existing bill by id.
func (r *PostgresImportRepository) UpdateBill(ctx context.Context, bill *Bill) error {
	query := `
		UPDATE bills
		SET kind = $2, name = $3, amount = $4, frequency = $5, due_day = $6,
			provider = $7, category = $8, notes = $9, autopay = $10, import_key = $11
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		bill.ID,
		bill.Kind,
		bill.Name,
		bill.Amount,
		bill.Frequency,
		bill.DueDay,
		bill.Provider,
		bill.Category,
		bill.Notes,
		bill.Autopay,
		bill.ImportKey,
	).Scan(&bill.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	return nil
}

// InsertDebt inserts a new debt carrying its import key.
func (r *PostgresImportRepository) InsertDebt(ctx context.Context, debt *Debt) error {
	query := `
		INSERT INTO debts (id, user_id, creditor_name, debt_type, starting_balance, current_balance, interest_rate, minimum_payment, due_day, status, notes, import_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if debt.ID == uuid.Nil {
		debt.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		debt.ID,
		debt.UserID,
		debt.CreditorName,
		debt.DebtType,
		debt.StartingBalance,
		debt.CurrentBalance,
		debt.InterestRate,
		debt.MinimumPayment,
		debt.DueDay,
		debt.Status,
		debt.Notes,
		debt.ImportKey,
	).Scan(&debt.CreatedAt, &debt.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	return nil
}

// UpdateDebt overwrites an existing debt by id.
func (r *PostgresImportRepository) UpdateDebt(ctx context.Context, debt *Debt) error {
	query := `
		UPDATE debts
		SET creditor_name = $2, debt_type = $3, starting_balance = $4, current_balance = $5,
			interest_rate = $6, minimum_payment = $7, due_day = $8, status = $9, notes = $10, import_key = $11
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		debt.ID,
		debt.CreditorName,
		debt.DebtType,
		debt.StartingBalance,
		debt.CurrentBalance,
		debt.InterestRate,
		debt.MinimumPayment,
		debt.DueDay,
		debt.Status,
		debt.Notes,
		debt.ImportKey,
	).Scan(&debt.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	return nil
}

// CreateAudit records the outcome of a completed import.
func (r *PostgresImportRepository) CreateAudit(ctx context.Context, audit *ImportAudit) error {
	query := `
		INSERT INTO import_audits (id, user_id, file_name, sheet_name, layout, bills_mapping_signature,
			bills_added, bills_updated, bills_skipped,
			subscriptions_added, subscriptions_updated, subscriptions_skipped,
			debts_added, debts_updated, debts_skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		audit.ID,
		audit.UserID,
		audit.FileName,
		audit.SheetName,
		audit.Layout,
		audit.BillsMappingSignature,
		audit.BillsAdded,
		audit.BillsUpdated,
		audit.BillsSkipped,
		audit.SubscriptionsAdded,
		audit.SubscriptionsUpdated,
		audit.SubscriptionsSkipped,
		audit.DebtsAdded,
		audit.DebtsUpdated,
		audit.DebtsSkipped,
	).Scan(&audit.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create import audit: %w", err)
	}
	return nil
}
