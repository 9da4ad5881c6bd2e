package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/pkg/models"
)

// PostgresAnalysisRepository implements AnalysisRepository for PostgreSQL
type PostgresAnalysisRepository struct {
	db *sql.DB
}

// NewPostgresAnalysisRepository creates a new PostgreSQL analysis repository
func NewPostgresAnalysisRepository(db *sql.DB) repository.AnalysisRepository {
	return &PostgresAnalysisRepository{db: db}
}

const analysisColumns = `id, session_id, kind, status, progress, trace_key, mime_type, params, error_message, created_at, updated_at, completed_at`

// jsonColumn encodes v for a JSONB column, NULL when v is nil
func jsonColumn(v any, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// decodeColumn fills dst from a nullable JSONB column
func decodeColumn(col []byte, dst any) error {
	if len(col) == 0 {
		return nil
	}
	return json.Unmarshal(col, dst)
}

// Create inserts a new analysis record, assigning an id and timestamps when unset
func (r *PostgresAnalysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	now := time.Now()
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = now
	}
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = now
	}
	if analysis.Status == "" {
		analysis.Status = models.StatusPending
	}

	params, err := jsonColumn(analysis.Params, analysis.Params == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `
		INSERT INTO analyses (id, session_id, kind, status, progress, trace_key, mime_type, params, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		analysis.ID,
		analysis.SessionID,
		analysis.Kind,
		analysis.Status,
		analysis.Progress,
		analysis.TraceKey,
		analysis.MimeType,
		params,
		analysis.CreatedAt,
		analysis.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var analysis models.Analysis
	var traceKey, errorMsg sql.NullString
	var params []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&analysis.ID,
		&analysis.SessionID,
		&analysis.Kind,
		&analysis.Status,
		&analysis.Progress,
		&traceKey,
		&analysis.MimeType,
		&params,
		&errorMsg,
		&analysis.CreatedAt,
		&analysis.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if traceKey.Valid {
		analysis.TraceKey = &traceKey.String
	}
	if errorMsg.Valid {
		analysis.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		analysis.CompletedAt = &completedAt.Time
	}
	if len(params) > 0 {
		analysis.Params = &models.AnalysisParams{}
		if err := json.Unmarshal(params, analysis.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	return &analysis, nil
}

// GetByID retrieves an analysis by ID
func (r *PostgresAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	analysis, err := scanAnalysis(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// GetBySessionID retrieves analyses by session ID, newest first
func (r *PostgresAnalysisRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// UpdateStatus updates the status and progress of an analysis
func (r *PostgresAnalysisRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE analyses
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, progress, id)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

// UpdateError marks an analysis failed with a message
func (r *PostgresAnalysisRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE analyses
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, errorMsg, id)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("analysis %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// StoreResults stores analysis results
func (r *PostgresAnalysisRepository) StoreResults(ctx context.Context, results *models.AnalysisResults) error {
	if results.ID == "" {
		results.ID = uuid.New().String()
	}
	if results.CreatedAt.IsZero() {
		results.CreatedAt = time.Now()
	}

	connection, err := jsonColumn(results.Connection, results.Connection == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal connection features: %w", err)
	}
	failure, err := jsonColumn(results.Failure, results.Failure == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal failure report: %w", err)
	}
	meanTrace, err := jsonColumn(results.MeanTrace, results.MeanTrace == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal mean trace: %w", err)
	}
	spikes, err := jsonColumn(results.Spikes, results.Spikes == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal spike features: %w", err)
	}
	baseline, err := jsonColumn(results.Baseline, results.Baseline == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline features: %w", err)
	}

	// a re-run replaces the previous results of the analysis and keeps their row id
	query := `
		INSERT INTO analysis_results (id, analysis_id, connection, failure, mean_trace, spikes, baseline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (analysis_id) DO UPDATE SET
			connection = EXCLUDED.connection,
			failure = EXCLUDED.failure,
			mean_trace = EXCLUDED.mean_trace,
			spikes = EXCLUDED.spikes,
			baseline = EXCLUDED.baseline,
			created_at = EXCLUDED.created_at
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		results.ID,
		results.AnalysisID,
		connection,
		failure,
		meanTrace,
		spikes,
		baseline,
		results.CreatedAt).Scan(&results.ID)
	if err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	return nil
}

// GetResults retrieves analysis results
func (r *PostgresAnalysisRepository) GetResults(ctx context.Context, analysisID uuid.UUID) (*models.AnalysisResults, error) {
	query := `
		SELECT id, analysis_id, connection, failure, mean_trace, spikes, baseline, created_at
		FROM analysis_results
		WHERE analysis_id = $1`

	var results models.AnalysisResults
	var connection, failure, meanTrace, spikes, baseline []byte

	err := r.db.QueryRowContext(ctx, query, analysisID).Scan(
		&results.ID,
		&results.AnalysisID,
		&connection,
		&failure,
		&meanTrace,
		&spikes,
		&baseline,
		&results.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("results for %s: %w", analysisID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if len(connection) > 0 {
		results.Connection = &models.ConnectionFeatures{}
		if err := decodeColumn(connection, results.Connection); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection features: %w", err)
		}
	}
	if len(failure) > 0 {
		results.Failure = &models.FailureReport{}
		if err := decodeColumn(failure, results.Failure); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure report: %w", err)
		}
	}
	if err := decodeColumn(meanTrace, &results.MeanTrace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mean trace: %w", err)
	}
	if err := decodeColumn(spikes, &results.Spikes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spike features: %w", err)
	}
	if err := decodeColumn(baseline, &results.Baseline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baseline features: %w", err)
	}

	return &results, nil
}
