// Package sqlite stores simulations and settings in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iwvelando/credit-simulator/internal/storage"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Repository is a storage.Repository backed by SQLite.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite storage ready",
		zap.String("op", "sqlite.New"),
		zap.String("path", dbPath),
	)
	return &Repository{db: db, logger: logger, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) SaveSimulation(ctx context.Context, record storage.Record) (storage.Record, error) {
	record = storage.Prepare(record, r.now())

	installments, err := json.Marshal(record.Installments)
	if err != nil {
		return storage.Record{}, fmt.Errorf("encode installments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO simulations (
			id, category_key, type, credit_value, down_payment, installments,
			user_display_name, company, custom_fee, fee_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CategoryKey, record.Type, record.CreditValue, record.DownPayment, string(installments),
		record.UserDisplayName, record.Company, record.CustomFee, record.FeeCode, record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return storage.Record{}, fmt.Errorf("insert simulation: %w", err)
	}

	r.logger.Debug("simulation saved",
		zap.String("op", "sqlite.SaveSimulation"),
		zap.String("id", record.ID),
		zap.String("type", record.Type),
	)
	return record, nil
}

func (r *Repository) ListSimulations(ctx context.Context) ([]storage.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_key, type, credit_value, down_payment, installments,
			user_display_name, company, custom_fee, fee_code, created_at
		FROM simulations
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query simulations: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var (
			record       storage.Record
			installments string
			createdAt    int64
		)
		if err := rows.Scan(
			&record.ID, &record.CategoryKey, &record.Type, &record.CreditValue, &record.DownPayment, &installments,
			&record.UserDisplayName, &record.Company, &record.CustomFee, &record.FeeCode, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		if err := json.Unmarshal([]byte(installments), &record.Installments); err != nil {
			return nil, fmt.Errorf("decode installments of %s: %w", record.ID, err)
		}
		record.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulations: %w", err)
	}
	return records, nil
}

func (r *Repository) DeleteAllSimulations(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM simulations`)
	if err != nil {
		return 0, fmt.Errorf("delete simulations: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted simulations: %w", err)
	}
	r.logger.Info("simulations deleted",
		zap.String("op", "sqlite.DeleteAllSimulations"),
		zap.Int64("count", removed),
	)
	return removed, nil
}

func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM simulation_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO simulation_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}
