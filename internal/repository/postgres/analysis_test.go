package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/pkg/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := pgContainer.Run(ctx,
		"postgres:15-alpine",
		pgContainer.WithDatabase("cellular_test"),
		pgContainer.WithUsername("testuser"),
		pgContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrations are idempotent")
	return db
}

func TestAnalysisRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresAnalysisRepository(setupDB(t))

	key := "traces/conn-1.csv"
	analysis := &models.Analysis{
		SessionID: "session-0001",
		Kind:      models.KindPSP,
		TraceKey:  &key,
		MimeType:  "text/csv",
		Params:    &models.AnalysisParams{StimIndices: []int{1000, 1500}, SampleInterval: 0.0001},
	}
	require.NoError(t, repo.Create(ctx, analysis))
	require.NotEmpty(t, analysis.ID)

	id := uuid.MustParse(analysis.ID)
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.KindPSP, got.Kind)
	assert.Equal(t, key, *got.TraceKey)
	assert.Equal(t, []int{1000, 1500}, got.Params.StimIndices)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusProcessing, 50))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)

	results := &models.AnalysisResults{
		AnalysisID: analysis.ID,
		Connection: &models.ConnectionFeatures{
			Amplitudes: [][]float64{{1.2, 0.9}},
			TauRises:   [][]float64{{0.002, 0.003}},
			Latencies:  [][]float64{{0.001, 0.0012}},
			Noise:      []float64{0.1},
		},
		Failure:   &models.FailureReport{Failures: 1, Total: 2, Rate: 0.5, FailedAmps: []float64{0.9}, CorrectAmps: []float64{1.2}},
		MeanTrace: []float64{-70, -69.5},
	}
	require.NoError(t, repo.StoreResults(ctx, results))
	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusCompleted, 100))

	stored, err := repo.GetResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, results.ID, stored.ID)
	assert.Equal(t, results.Connection, stored.Connection)
	assert.Equal(t, results.Failure, stored.Failure)
	assert.Equal(t, results.MeanTrace, stored.MeanTrace)
	assert.Nil(t, stored.Spikes)

	rerun := &models.AnalysisResults{
		AnalysisID: analysis.ID,
		Failure:    &models.FailureReport{Failures: 0, Total: 2, Rate: 0, CorrectAmps: []float64{1.2, 0.9}},
	}
	require.NoError(t, repo.StoreResults(ctx, rerun))
	assert.Equal(t, results.ID, rerun.ID)
	stored, err = repo.GetResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rerun.Failure, stored.Failure)
	assert.Nil(t, stored.Connection)

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	list, err := repo.GetBySessionID(ctx, "session-0001")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAnalysisRepositoryErrors_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresAnalysisRepository(setupDB(t))
	missing := uuid.New()

	_, err := repo.GetByID(ctx, missing)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetResults(ctx, missing)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, missing, models.StatusProcessing, 10), repository.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateError(ctx, missing, "boom"), repository.ErrNotFound)

	a := &models.Analysis{SessionID: "session-0002", Kind: models.KindFiring, MimeType: "application/json"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.UpdateError(ctx, uuid.MustParse(a.ID), "could not parse trace"))

	got, err := repo.GetByID(ctx, uuid.MustParse(a.ID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "could not parse trace", *got.ErrorMsg)
	assert.Nil(t, got.Params)
	assert.Nil(t, got.TraceKey)
}
