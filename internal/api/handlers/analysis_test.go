package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/internal/storage"
	"github.com/RMahshie/cellular/pkg/models"
)

// MockAnalysisRepository implements repository.AnalysisRepository for testing
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockAnalysisRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Analysis, error) {
	args := m.Called(ctx, sessionID)
	a, _ := args.Get(0).([]*models.Analysis)
	return a, args.Error(1)
}

func (m *MockAnalysisRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockAnalysisRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockAnalysisRepository) StoreResults(ctx context.Context, results *models.AnalysisResults) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetResults(ctx context.Context, analysisID uuid.UUID) (*models.AnalysisResults, error) {
	args := m.Called(ctx, analysisID)
	r, _ := args.Get(0).(*models.AnalysisResults)
	return r, args.Error(1)
}

// MockTraceStore implements storage.TraceStore for testing
type MockTraceStore struct {
	mock.Mock
}

func (m *MockTraceStore) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockTraceStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockTraceStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockTraceStore) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockTraceStore) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockTraceStore) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockProcessingService implements processing.ProcessingService for testing
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	args := m.Called(ctx, analysisID)
	return args.Error(0)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a huma status error, got %v", err)
	return se.GetStatus()
}

func createRequest(kind string, size int64, mime string) *models.CreateAnalysisRequest {
	return &models.CreateAnalysisRequest{
		Body: models.CreateAnalysisRequestBody{
			SessionID: "test-session-123",
			Kind:      kind,
			FileSize:  size,
			MimeType:  mime,
		},
	}
}

func TestCreateAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		input     *models.CreateAnalysisRequest
		mockSetup func(*MockAnalysisRepository, *MockTraceStore)
		wantCode  int
	}{
		{
			name:  "valid csv sweep set",
			input: createRequest(models.KindPSP, 5242880, "text/csv"),
			mockSetup: func(mockRepo *MockAnalysisRepository, mockStore *MockTraceStore) {
				mockStore.On("GenerateUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "traces/") && strings.HasSuffix(key, ".csv")
				}), "text/csv").Return("https://example.com/upload", nil)
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.Analysis) bool {
					return a.Kind == models.KindPSP && a.Status == models.StatusPending && a.TraceKey != nil
				})).Return(nil)
			},
		},
		{
			name:      "file too small",
			input:     createRequest(models.KindFiring, 8, "application/octet-stream"),
			mockSetup: func(*MockAnalysisRepository, *MockTraceStore) {},
			wantCode:  400,
		},
		{
			name:      "file too large",
			input:     createRequest(models.KindFiring, MaxTraceSize+1, "application/octet-stream"),
			mockSetup: func(*MockAnalysisRepository, *MockTraceStore) {},
			wantCode:  400,
		},
		{
			name:      "unknown kind",
			input:     createRequest("iv", 5000, "text/csv"),
			mockSetup: func(*MockAnalysisRepository, *MockTraceStore) {},
			wantCode:  400,
		},
		{
			name:  "invalid MIME type for store",
			input: createRequest(models.KindBaseline, 5000, "image/png"),
			mockSetup: func(mockRepo *MockAnalysisRepository, mockStore *MockTraceStore) {
				mockStore.On("GenerateUploadURL", mock.Anything, mock.Anything, "image/png").
					Return("", fmt.Errorf("%w: image/png", storage.ErrInvalidContentType))
			},
			wantCode: 400,
		},
		{
			name:  "repository failure",
			input: createRequest(models.KindPSP, 5000, "application/json"),
			mockSetup: func(mockRepo *MockAnalysisRepository, mockStore *MockTraceStore) {
				mockStore.On("GenerateUploadURL", mock.Anything, mock.Anything, "application/json").Return("https://example.com/upload", nil)
				mockRepo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
			},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockAnalysisRepository{}
			mockStore := &MockTraceStore{}
			mockProc := &MockProcessingService{}
			tt.mockSetup(mockRepo, mockStore)

			handler := NewAnalysisHandler(mockRepo, mockStore, mockProc)
			resp, err := handler.CreateAnalysis(context.Background(), tt.input)

			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.Body.ID)
				assert.Equal(t, "https://example.com/upload", resp.Body.UploadURL)
				assert.Equal(t, 900, resp.Body.ExpiresIn) // 15 minutes in seconds
			}

			mockRepo.AssertExpectations(t)
			mockStore.AssertExpectations(t)
			mockProc.AssertExpectations(t)
		})
	}
}

func TestTraceExt(t *testing.T) {
	assert.Equal(t, ".csv", traceExt("text/csv"))
	assert.Equal(t, ".json", traceExt("application/json"))
	assert.Equal(t, ".dat", traceExt("application/octet-stream"))
}

func TestGetAnalysisStatus(t *testing.T) {
	id := uuid.New()
	failMsg := "Failed to parse trace: malformed trace file"

	tests := []struct {
		name        string
		id          string
		analysis    *models.Analysis
		repoErr     error
		results     *models.AnalysisResults
		wantCode    int
		wantMessage string
		wantResults bool
	}{
		{
			name:        "processing",
			id:          id.String(),
			analysis:    &models.Analysis{ID: id.String(), Status: models.StatusProcessing, Progress: 60},
			wantMessage: "Extracting features...",
		},
		{
			name:        "completed with results",
			id:          id.String(),
			analysis:    &models.Analysis{ID: id.String(), Status: models.StatusCompleted, Progress: 100},
			results:     &models.AnalysisResults{ID: "res-1"},
			wantMessage: "Analysis complete!",
			wantResults: true,
		},
		{
			name:        "failed reports stored error",
			id:          id.String(),
			analysis:    &models.Analysis{ID: id.String(), Status: models.StatusFailed, ErrorMsg: &failMsg},
			wantMessage: failMsg,
		},
		{
			name:     "invalid id",
			id:       "not-a-uuid",
			wantCode: 400,
		},
		{
			name:     "not found",
			id:       id.String(),
			repoErr:  repository.ErrNotFound,
			wantCode: 404,
		},
		{
			name:     "database error",
			id:       id.String(),
			repoErr:  assert.AnError,
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockAnalysisRepository{}
			if tt.analysis != nil || tt.repoErr != nil {
				mockRepo.On("GetByID", mock.Anything, id).Return(tt.analysis, tt.repoErr)
			}
			if tt.results != nil {
				mockRepo.On("GetResults", mock.Anything, id).Return(tt.results, nil)
			}

			handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
			resp, err := handler.GetAnalysisStatus(context.Background(), &models.GetAnalysisStatusRequest{ID: tt.id})

			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, resp.Body.Message)
			if tt.wantResults {
				require.NotNil(t, resp.Body.ResultsID)
				assert.Equal(t, "res-1", *resp.Body.ResultsID)
			} else {
				assert.Nil(t, resp.Body.ResultsID)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestGetAnalysisResults(t *testing.T) {
	id := uuid.New()

	t.Run("completed psp analysis", func(t *testing.T) {
		mockRepo := &MockAnalysisRepository{}
		mockRepo.On("GetByID", mock.Anything, id).
			Return(&models.Analysis{ID: id.String(), Kind: models.KindPSP, Status: models.StatusCompleted}, nil)
		mockRepo.On("GetResults", mock.Anything, id).Return(&models.AnalysisResults{
			ID:        "res-1",
			Failure:   &models.FailureReport{Total: 27, Failures: 1},
			MeanTrace: []float64{-70, -69},
		}, nil)

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
		resp, err := handler.GetAnalysisResults(context.Background(), &models.GetAnalysisResultsRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, models.KindPSP, resp.Body.Kind)
		assert.Equal(t, 27, resp.Body.Failure.Total)
		assert.Equal(t, []float64{-70, -69}, resp.Body.MeanTrace)
		assert.Empty(t, resp.Body.TraceURL)
		mockRepo.AssertExpectations(t)
	})

	t.Run("trace download url", func(t *testing.T) {
		key := "traces/" + id.String() + ".csv"
		mockRepo := &MockAnalysisRepository{}
		mockStore := &MockTraceStore{}
		mockRepo.On("GetByID", mock.Anything, id).
			Return(&models.Analysis{ID: id.String(), Kind: models.KindFiring, Status: models.StatusCompleted, TraceKey: &key}, nil)
		mockRepo.On("GetResults", mock.Anything, id).Return(&models.AnalysisResults{ID: "res-2"}, nil)
		mockStore.On("GenerateDownloadURL", mock.Anything, key).Return("https://bucket.example/"+key+"?sig=1", nil)

		handler := NewAnalysisHandler(mockRepo, mockStore, &MockProcessingService{})
		resp, err := handler.GetAnalysisResults(context.Background(), &models.GetAnalysisResultsRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "https://bucket.example/"+key+"?sig=1", resp.Body.TraceURL)
		mockStore.AssertExpectations(t)
	})

	t.Run("presign failure keeps results", func(t *testing.T) {
		key := "traces/" + id.String() + ".csv"
		mockRepo := &MockAnalysisRepository{}
		mockStore := &MockTraceStore{}
		mockRepo.On("GetByID", mock.Anything, id).
			Return(&models.Analysis{ID: id.String(), Kind: models.KindFiring, Status: models.StatusCompleted, TraceKey: &key}, nil)
		mockRepo.On("GetResults", mock.Anything, id).Return(&models.AnalysisResults{ID: "res-2"}, nil)
		mockStore.On("GenerateDownloadURL", mock.Anything, key).Return("", assert.AnError)

		handler := NewAnalysisHandler(mockRepo, mockStore, &MockProcessingService{})
		resp, err := handler.GetAnalysisResults(context.Background(), &models.GetAnalysisResultsRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "res-2", resp.Body.ID)
		assert.Empty(t, resp.Body.TraceURL)
	})

	t.Run("not yet completed", func(t *testing.T) {
		mockRepo := &MockAnalysisRepository{}
		mockRepo.On("GetByID", mock.Anything, id).
			Return(&models.Analysis{ID: id.String(), Status: models.StatusProcessing}, nil)

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
		_, err := handler.GetAnalysisResults(context.Background(), &models.GetAnalysisResultsRequest{ID: id.String()})
		require.Error(t, err)
		assert.Equal(t, 409, statusOf(t, err))
	})
}

func TestListSessionAnalyses(t *testing.T) {
	session := "session-0001"

	t.Run("lists newest first", func(t *testing.T) {
		done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		mockRepo := &MockAnalysisRepository{}
		mockRepo.On("GetBySessionID", mock.Anything, session).Return([]*models.Analysis{
			{ID: "b", Kind: models.KindFiring, Status: models.StatusPending},
			{ID: "a", Kind: models.KindPSP, Status: models.StatusCompleted, Progress: 100, CompletedAt: &done},
		}, nil)

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
		resp, err := handler.ListSessionAnalyses(context.Background(), &models.ListSessionAnalysesRequest{SessionID: session})
		require.NoError(t, err)
		assert.Equal(t, session, resp.Body.SessionID)
		require.Len(t, resp.Body.Analyses, 2)
		assert.Equal(t, "b", resp.Body.Analyses[0].ID)
		assert.Equal(t, models.KindPSP, resp.Body.Analyses[1].Kind)
		assert.Equal(t, &done, resp.Body.Analyses[1].CompletedAt)
	})

	t.Run("empty session", func(t *testing.T) {
		mockRepo := &MockAnalysisRepository{}
		mockRepo.On("GetBySessionID", mock.Anything, session).Return(nil, nil)

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
		resp, err := handler.ListSessionAnalyses(context.Background(), &models.ListSessionAnalysesRequest{SessionID: session})
		require.NoError(t, err)
		assert.NotNil(t, resp.Body.Analyses)
		assert.Empty(t, resp.Body.Analyses)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := &MockAnalysisRepository{}
		mockRepo.On("GetBySessionID", mock.Anything, session).Return(nil, assert.AnError)

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, &MockProcessingService{})
		_, err := handler.ListSessionAnalyses(context.Background(), &models.ListSessionAnalysesRequest{SessionID: session})
		require.Error(t, err)
		assert.Equal(t, 500, statusOf(t, err))
	})
}

func TestStartProcessing(t *testing.T) {
	id := uuid.New()

	t.Run("starts background processing", func(t *testing.T) {
		mockRepo := &MockAnalysisRepository{}
		mockProc := &MockProcessingService{}
		mockRepo.On("GetByID", mock.Anything, id).
			Return(&models.Analysis{ID: id.String(), Status: models.StatusPending}, nil)

		done := make(chan struct{})
		mockProc.On("ProcessAnalysis", mock.Anything, id).Return(nil).Run(func(mock.Arguments) { close(done) })

		handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, mockProc)
		resp, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "Processing started successfully", resp.Body.Message)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing was not started")
		}
		mockProc.AssertExpectations(t)
	})

	for _, status := range []string{models.StatusProcessing, models.StatusCompleted} {
		t.Run("already "+status, func(t *testing.T) {
			mockRepo := &MockAnalysisRepository{}
			mockProc := &MockProcessingService{}
			mockRepo.On("GetByID", mock.Anything, id).
				Return(&models.Analysis{ID: id.String(), Status: status}, nil)

			handler := NewAnalysisHandler(mockRepo, &MockTraceStore{}, mockProc)
			_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
			require.Error(t, err)
			assert.Equal(t, 409, statusOf(t, err))
			mockProc.AssertNotCalled(t, "ProcessAnalysis", mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "UpdateError", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateStatusMessage(t *testing.T) {
	assert.Equal(t, "Waiting for trace upload...", generateStatusMessage(models.StatusPending, 0))
	assert.Equal(t, "Starting analysis...", generateStatusMessage(models.StatusProcessing, 10))
	assert.Equal(t, "Downloading trace file...", generateStatusMessage(models.StatusProcessing, 20))
	assert.Equal(t, "Finalizing results...", generateStatusMessage(models.StatusProcessing, 90))
	assert.Equal(t, "Unknown status", generateStatusMessage("queued", 0))
}
