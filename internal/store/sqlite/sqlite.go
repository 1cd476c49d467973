package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/modelmux/modelmux/internal/store"
	"github.com/modelmux/modelmux/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

func (r *SqliteRepository) Attempts() store.AttemptRepository {
	return &attemptRepo{db: r.executor}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, requested_model, selected_model, provider, match_kind,
		strategy, task_type, input_tokens, output_tokens,
		latency_ms, status_code, attempts, is_streamed, ip_address, created_at
	) VALUES (
		:id, :requested_model, :selected_model, :provider, :match_kind,
		:strategy, :task_type, :input_tokens, :output_tokens,
		:latency_ms, :status_code, :attempts, :is_streamed, :ip_address, :created_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return err
	}

	for i := range log.AttemptLogs {
		log.AttemptLogs[i].RequestID = log.ID
		if err := (&attemptRepo{db: r.db}).Log(ctx, &log.AttemptLogs[i]); err != nil {
			return fmt.Errorf("failed to log attempt %d: %w", log.AttemptLogs[i].Attempt, err)
		}
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	var log model.RequestLog
	if err := r.db.GetContext(ctx, &log, `SELECT * FROM request_logs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	attempts, err := (&attemptRepo{db: r.db}).ListByRequest(ctx, id)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	log.AttemptLogs = attempts

	return &log, nil
}

func (r *requestRepo) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	var logs []model.RequestLog
	query := `SELECT * FROM request_logs ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &logs, query, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	var stats []model.DailyStats
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as total_requests,
			SUM(input_tokens + output_tokens) as total_tokens,
			AVG(latency_ms) as avg_latency
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date
		ORDER BY date DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}

type attemptRepo struct {
	db DB
}

func (r *attemptRepo) Log(ctx context.Context, attempt *model.AttemptLog) error {
	query := `
	INSERT INTO attempt_logs (
		id, request_id, model_id, provider, attempt,
		latency_ms, succeeded, error, created_at
	) VALUES (
		:id, :request_id, :model_id, :provider, :attempt,
		:latency_ms, :succeeded, :error, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, attempt)
	return err
}

func (r *attemptRepo) ListByRequest(ctx context.Context, requestID string) ([]model.AttemptLog, error) {
	var attempts []model.AttemptLog
	query := `SELECT * FROM attempt_logs WHERE request_id = ? ORDER BY attempt ASC`
	err := r.db.SelectContext(ctx, &attempts, query, requestID)
	return attempts, err
}
