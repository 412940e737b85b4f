// Package postgres stores simulations and settings in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

// Config holds the connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Repository is a storage.Repository backed by PostgreSQL.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

type simulationRow struct {
	ID              string    `db:"id"`
	CategoryKey     string    `db:"category_key"`
	Type            string    `db:"type"`
	CreditValue     float64   `db:"credit_value"`
	DownPayment     float64   `db:"down_payment"`
	Installments    []byte    `db:"installments"`
	UserDisplayName string    `db:"user_display_name"`
	Company         string    `db:"company"`
	CustomFee       string    `db:"custom_fee"`
	FeeCode         string    `db:"fee_code"`
	CreatedAt       time.Time `db:"created_at"`
}

// New connects with exponential backoff, runs migrations, and returns the repository.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Repository, error) {
	const operation = "postgres.New"
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s: database URL is empty", operation)
	}

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = cfg.ConnectTimeout
	if retryPolicy.MaxElapsedTime <= 0 {
		retryPolicy.MaxElapsedTime = 2 * time.Minute
	}
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("connecting to PostgreSQL", zap.String("op", operation))

	var db *sqlx.DB
	err := backoff.RetryNotify(
		func() error {
			var err error
			db, err = sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if err = db.PingContext(ctx); err != nil {
				db.Close()
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying",
				zap.String("op", operation),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := RunMigrations(ctx, db.DB, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to PostgreSQL", zap.String("op", operation))
	return &Repository{db: db, logger: logger, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) SaveSimulation(ctx context.Context, record storage.Record) (storage.Record, error) {
	const operation = "postgres.SaveSimulation"

	record = storage.Prepare(record, r.now())
	row, err := toRow(record)
	if err != nil {
		return storage.Record{}, fmt.Errorf("%s: %w", operation, err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO simulations (
			id, category_key, type, credit_value, down_payment, installments,
			user_display_name, company, custom_fee, fee_code, created_at
		) VALUES (
			:id, :category_key, :type, :credit_value, :down_payment, :installments,
			:user_display_name, :company, :custom_fee, :fee_code, :created_at
		)`, row)
	if err != nil {
		return storage.Record{}, fmt.Errorf("%s: insert: %w", operation, err)
	}

	r.logger.Debug("simulation saved",
		zap.String("op", operation),
		zap.String("id", record.ID),
	)
	return record, nil
}

func (r *Repository) ListSimulations(ctx context.Context) ([]storage.Record, error) {
	const operation = "postgres.ListSimulations"

	var rows []simulationRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, category_key, type, credit_value, down_payment, installments,
			user_display_name, company, custom_fee, fee_code, created_at
		FROM simulations
		ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("%s: select: %w", operation, err)
	}

	records := make([]storage.Record, 0, len(rows))
	for _, row := range rows {
		record, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository) DeleteAllSimulations(ctx context.Context) (int64, error) {
	const operation = "postgres.DeleteAllSimulations"

	result, err := r.db.ExecContext(ctx, `DELETE FROM simulations`)
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", operation, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	r.logger.Info("simulations deleted", zap.String("op", operation), zap.Int64("count", removed))
	return removed, nil
}

func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM simulation_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres.GetSetting: %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO simulation_settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, r.now().UTC())
	if err != nil {
		return fmt.Errorf("postgres.PutSetting: %s: %w", key, err)
	}
	return nil
}

func toRow(record storage.Record) (simulationRow, error) {
	installments := record.Installments
	if installments == nil {
		installments = []storage.Installment{}
	}
	encoded, err := json.Marshal(installments)
	if err != nil {
		return simulationRow{}, fmt.Errorf("encode installments: %w", err)
	}
	return simulationRow{
		ID:              record.ID,
		CategoryKey:     record.CategoryKey,
		Type:            record.Type,
		CreditValue:     record.CreditValue,
		DownPayment:     record.DownPayment,
		Installments:    encoded,
		UserDisplayName: record.UserDisplayName,
		Company:         record.Company,
		CustomFee:       record.CustomFee,
		FeeCode:         record.FeeCode,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func fromRow(row simulationRow) (storage.Record, error) {
	record := storage.Record{
		ID:              row.ID,
		CategoryKey:     row.CategoryKey,
		Type:            row.Type,
		CreditValue:     row.CreditValue,
		DownPayment:     row.DownPayment,
		UserDisplayName: row.UserDisplayName,
		Company:         row.Company,
		CustomFee:       row.CustomFee,
		FeeCode:         row.FeeCode,
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if len(row.Installments) > 0 {
		if err := json.Unmarshal(row.Installments, &record.Installments); err != nil {
			return storage.Record{}, fmt.Errorf("decode installments of %s: %w", row.ID, err)
		}
	}
	return record, nil
}
