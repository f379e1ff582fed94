// Package repository provides database operations for imported records.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BillKind distinguishes rows imported from the bills section from rows
// imported from the subscriptions section; both live in the bills table.
type BillKind string

const (
	BillKindBill         BillKind = "bill"
	BillKindSubscription BillKind = "subscription"
)

// Bill is a stored bill or subscription record.
type Bill struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      BillKind
	Name      string
	Amount    *float64
	Frequency string
	DueDay    *int
	Provider  *string
	Category  *string
	Notes     *string
	Autopay   *bool
	ImportKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Debt is a stored debt record.
type Debt struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	CreditorName    string
	DebtType        string
	StartingBalance *float64
	CurrentBalance  *float64
	InterestRate    *float64
	MinimumPayment  *float64
	DueDay          *int
	Status          string
	Notes           *string
	ImportKey       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImportAudit is the one-per-import audit record.
type ImportAudit struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	FileName              string
	SheetName             string
	Layout                string
	BillsMappingSignature string
	BillsAdded            int
	BillsUpdated          int
	BillsSkipped          int
	SubscriptionsAdded    int
	SubscriptionsUpdated  int
	SubscriptionsSkipped  int
	DebtsAdded            int
	DebtsUpdated          int
	DebtsSkipped          int
	CreatedAt             time.Time
}

// ImportRepository defines the persistence boundary for the import pipeline.
type ImportRepository interface {
	// Snapshots for duplicate detection.
	ListBills(ctx context.Context, userID uuid.UUID) ([]*Bill, error)
	ListDebts(ctx context.Context, userID uuid.UUID) ([]*Debt, error)

	// Per-row writes during commit.
	InsertBill(ctx context.Context, bill *Bill) error
	UpdateBill(ctx context.Context, bill *Bill) error
	InsertDebt(ctx context.Context, debt *Debt) error
	UpdateDebt(ctx context.Context, debt *Debt) error

	// Audit trail.
	CreateAudit(ctx context.Context, audit *ImportAudit) error
}
