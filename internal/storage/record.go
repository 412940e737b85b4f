// Package storage defines simulation persistence: the stored record, the
// repository contract, and an in-memory implementation. SQL-backed
// implementations live in the sqlite and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/credit-simulator/internal/simulation"
)

// ErrNotFound is returned when a setting has never been stored.
var ErrNotFound = errors.New("not found")

// Installment is a stored installment option.
type Installment struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Record is a persisted simulation.
type Record struct {
	ID              string        `json:"id" db:"id"`
	CategoryKey     string        `json:"categoryKey" db:"category_key"`
	Type            string        `json:"type" db:"type"`
	CreditValue     float64       `json:"creditValue" db:"credit_value"`
	DownPayment     float64       `json:"downPayment" db:"down_payment"`
	Installments    []Installment `json:"installments" db:"-"`
	UserDisplayName string        `json:"userDisplayName" db:"user_display_name"`
	Company         string        `json:"company" db:"company"`
	CustomFee       string        `json:"customFee,omitempty" db:"custom_fee"`
	FeeCode         string        `json:"feeCode,omitempty" db:"fee_code"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
}

// NewRecord builds a record for result with a fresh ID and timestamp.
func NewRecord(result simulation.Result, userDisplayName, company string, now time.Time) Record {
	installments := make([]Installment, len(result.InstallmentPlans))
	for i, plan := range result.InstallmentPlans {
		installments[i] = Installment{Count: plan.Count, Value: plan.Value}
	}
	return Record{
		ID:              NewID(),
		CategoryKey:     result.CategoryKey,
		Type:            result.CategoryName,
		CreditValue:     result.CreditValueOriginal,
		DownPayment:     result.DownPaymentValue,
		Installments:    installments,
		UserDisplayName: strings.TrimSpace(userDisplayName),
		Company:         strings.TrimSpace(company),
		CustomFee:       result.CustomFeePercent,
		FeeCode:         result.FeeCodeLabel,
		CreatedAt:       now.UTC(),
	}
}

// NewID returns a random record identifier.
func NewID() string {
	return uuid.NewString()
}

// SimulationStore persists simulation records.
type SimulationStore interface {
	// SaveSimulation stores record, assigning an ID and timestamp when unset.
	SaveSimulation(ctx context.Context, record Record) (Record, error)
	// ListSimulations returns every record, newest first.
	ListSimulations(ctx context.Context) ([]Record, error)
	// DeleteAllSimulations removes every record and reports how many were removed.
	DeleteAllSimulations(ctx context.Context) (int64, error)
}

// SettingsStore persists named settings as text.
type SettingsStore interface {
	// GetSetting returns ErrNotFound when key has never been stored.
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Repository is the full persistence contract.
type Repository interface {
	SimulationStore
	SettingsStore
	Close() error
}

// Prepare fills a missing ID and creation time.
func Prepare(record Record, now time.Time) Record {
	if record.ID == "" {
		record.ID = NewID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now.UTC()
	}
	return record
}
