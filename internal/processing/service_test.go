package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/cellular/internal/analysis"
	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

// MockAnalysisRepository implements repository.AnalysisRepository for testing
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockAnalysisRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Analysis, error) {
	args := m.Called(ctx, sessionID)
	list, _ := args.Get(0).([]*models.Analysis)
	return list, args.Error(1)
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
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
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

// connectionSet builds sweeps on the standard 1.3 s axis with a 1 mV
// response after every default stimulus; amps overrides single responses
// as sweep -> stimulus -> V.
func connectionSet(sweeps int, amps map[[2]int]float64) *traces.SweepSet {
	t := analysis.DefaultTime()
	set := &traces.SweepSet{Time: t}
	for s := 0; s < sweeps; s++ {
		v := make([]float64, len(t))
		pp := 0.0001 * float64(s+1)
		for i := 0; i < 900; i++ {
			v[i] = pp / 2 * math.Pow(-1, float64(i))
		}
		for k, idx := range analysis.DefaultStimIndices {
			a := 0.001
			if o, ok := amps[[2]int{s, k}]; ok {
				a = o
			}
			for i := idx; i < idx+400 && i < len(v); i++ {
				x := float64(i - idx - 20)
				switch {
				case x < 0:
				case x < 47:
					v[i] += a * x / 47
				default:
					v[i] += a * math.Exp(-(x-47)/20)
				}
			}
		}
		set.Sweeps = append(set.Sweeps, models.Trace{Label: "sweep_" + string(rune('0'+s)), Values: v})
	}
	return set
}

func csvBytes(t *testing.T, set *traces.SweepSet) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, set.WriteCSV(&buf))
	return buf.Bytes()
}

func expectSteps(repo *MockAnalysisRepository, id uuid.UUID, steps ...int) {
	for _, p := range steps {
		repo.On("UpdateStatus", mock.Anything, id, models.StatusProcessing, p).Return(nil).Once()
	}
}

func TestProcessAnalysis_PSP(t *testing.T) {
	id := uuid.New()
	key := "traces/" + id.String() + ".csv"
	data := csvBytes(t, connectionSet(3, map[[2]int]float64{{2, 2}: 0.0001}))

	repo := &MockAnalysisRepository{}
	store := &MockTraceStore{}

	expectSteps(repo, id, 10, 20, 50, 80, 90)
	repo.On("UpdateStatus", mock.Anything, id, models.StatusCompleted, 100).Return(nil).Once()
	repo.On("GetByID", mock.Anything, id).Return(&models.Analysis{
		ID: id.String(), Kind: models.KindPSP, TraceKey: &key, MimeType: traces.MimeCSV,
		Params: &models.AnalysisParams{NoiseWindow: true},
	}, nil)
	store.On("DownloadFile", mock.Anything, key).Return(data, nil)

	var stored *models.AnalysisResults
	repo.On("StoreResults", mock.Anything, mock.AnythingOfType("*models.AnalysisResults")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.AnalysisResults) }).
		Return(nil)

	svc := NewProcessingService(store, repo, Extractor{})
	require.NoError(t, svc.ProcessAnalysis(context.Background(), id))

	require.NotNil(t, stored)
	assert.Equal(t, id.String(), stored.AnalysisID)
	assert.NotEmpty(t, stored.ID)
	require.NotNil(t, stored.Failure)
	assert.Equal(t, 27, stored.Failure.Total)
	assert.Equal(t, 1, stored.Failure.Failures)
	assert.InDelta(t, 0.1, stored.Failure.NoiseStd, 1e-6)
	assert.Len(t, stored.MeanTrace, 13000)
	assert.Len(t, stored.Connection.Amplitudes, 3)

	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestProcessAnalysis_Firing(t *testing.T) {
	id := uuid.New()
	key := "traces/" + id.String() + ".json"

	tm := analysis.TimeAxis(1000, 1)
	v := make([]float64, len(tm))
	for i := range v {
		v[i] = -70
	}
	for _, s := range []int{500, 600, 700} {
		v[s] = 20
	}
	data, err := json.Marshal(map[string][]float64{"time": tm, "cell_1": v})
	require.NoError(t, err)

	repo := &MockAnalysisRepository{}
	store := &MockTraceStore{}
	expectSteps(repo, id, 10, 20, 50, 80, 90)
	repo.On("UpdateStatus", mock.Anything, id, models.StatusCompleted, 100).Return(nil).Once()
	repo.On("GetByID", mock.Anything, id).Return(&models.Analysis{
		ID: id.String(), Kind: models.KindFiring, TraceKey: &key, MimeType: traces.MimeJSON,
		Params: &models.AnalysisParams{StimStart: 400, StimEnd: 900},
	}, nil)
	store.On("DownloadFile", mock.Anything, key).Return(data, nil)
	repo.On("StoreResults", mock.Anything, mock.MatchedBy(func(r *models.AnalysisResults) bool {
		return len(r.Spikes) == 1 && r.Spikes[0].SpikeCount == 3 && r.Failure == nil
	})).Return(nil)

	svc := NewProcessingService(store, repo, Extractor{})
	require.NoError(t, svc.ProcessAnalysis(context.Background(), id))

	repo.AssertExpectations(t)
}

func TestProcessAnalysis_Failures(t *testing.T) {
	key := "traces/conn.csv"

	tests := []struct {
		name       string
		analysis   models.Analysis
		download   []byte
		dlErr      error
		steps      []int
		errMsg     any
		noDownload bool
		deleted    bool
		deleteErr  error
	}{
		{
			name:     "download fails",
			analysis: models.Analysis{Kind: models.KindPSP, TraceKey: &key, MimeType: traces.MimeCSV},
			dlErr:    assert.AnError,
			steps:    []int{10, 20},
			errMsg:   "Failed to download trace",
		},
		{
			name:     "unparseable trace",
			analysis: models.Analysis{Kind: models.KindPSP, TraceKey: &key, MimeType: traces.MimeJSON},
			download: []byte("not json"),
			steps:    []int{10, 20},
			errMsg:   mock.Anything,
			deleted:  true,
		},
		{
			name:     "unknown kind",
			analysis: models.Analysis{Kind: "voltage-clamp", TraceKey: &key, MimeType: traces.MimeJSON},
			download: []byte(`{"a":[1,2,3]}`),
			steps:    []int{10, 20, 50},
			errMsg:   mock.Anything,
			deleted:  true,
		},
		{
			name:      "trace delete fails",
			analysis:  models.Analysis{Kind: models.KindFiring, TraceKey: &key, MimeType: traces.MimeCSV},
			download:  []byte("a,b\n1,2\n3,\n"),
			steps:     []int{10, 20},
			errMsg:    mock.Anything,
			deleted:   true,
			deleteErr: assert.AnError,
		},
		{
			name:       "no trace key",
			analysis:   models.Analysis{Kind: models.KindPSP, MimeType: traces.MimeCSV},
			steps:      []int{10},
			errMsg:     "Analysis has no trace file",
			noDownload: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			a := tt.analysis
			a.ID = id.String()

			repo := &MockAnalysisRepository{}
			store := &MockTraceStore{}
			expectSteps(repo, id, tt.steps...)
			repo.On("GetByID", mock.Anything, id).Return(&a, nil)
			if !tt.noDownload {
				store.On("DownloadFile", mock.Anything, key).Return(tt.download, tt.dlErr)
			}
			if tt.deleted {
				store.On("DeleteFile", mock.Anything, key).Return(tt.deleteErr).Once()
			}
			repo.On("UpdateError", mock.Anything, id, tt.errMsg).Return(nil).Once()

			svc := NewProcessingService(store, repo, Extractor{})
			assert.NoError(t, svc.ProcessAnalysis(context.Background(), id), "failure is reported through the status")

			repo.AssertExpectations(t)
			store.AssertExpectations(t)
			repo.AssertNotCalled(t, "StoreResults", mock.Anything, mock.Anything)
			if !tt.deleted {
				store.AssertNotCalled(t, "DeleteFile", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestProcessAnalysis_StatusError(t *testing.T) {
	id := uuid.New()
	repo := &MockAnalysisRepository{}
	repo.On("UpdateStatus", mock.Anything, id, models.StatusProcessing, 10).Return(assert.AnError)

	svc := NewProcessingService(&MockTraceStore{}, repo, Extractor{})
	assert.ErrorIs(t, svc.ProcessAnalysis(context.Background(), id), assert.AnError)
}

func TestProcessConnections(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, amps := range []map[[2]int]float64{
		nil,
		{{0, 0}: 0.00001, {1, 0}: 0.00001},
	} {
		path := filepath.Join(dir, "conn_"+string(rune('a'+i))+".csv")
		require.NoError(t, os.WriteFile(path, csvBytes(t, connectionSet(2, amps)), 0o644))
		paths = append(paths, path)
	}

	res, err := Extractor{}.ProcessConnections(context.Background(), paths, nil, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, paths[0], res[0].Path)
	assert.Equal(t, 2, res[0].Sweeps)
	assert.Zero(t, res[0].Failure.Failures)
	assert.Equal(t, 18, res[1].Failure.Total)
	assert.Equal(t, 2, res[1].Failure.Failures)

	_, err = Extractor{}.ProcessConnections(context.Background(), append(paths, filepath.Join(dir, "missing.csv")), nil, 1)
	assert.Error(t, err)
}

func TestAnalyzeSmoothing(t *testing.T) {
	set := connectionSet(2, nil)
	res, err := Extractor{}.Analyze(models.KindPSP, set, &models.AnalysisParams{SmoothCutoffHz: 2000})
	require.NoError(t, err)
	for _, row := range res.Connection.Amplitudes {
		for _, amp := range row {
			assert.InDelta(t, 1.0, amp, 0.1)
		}
	}

	_, err = Extractor{}.Analyze(models.KindPSP, set, &models.AnalysisParams{SmoothCutoffHz: 9000})
	assert.Error(t, err, "cutoff above Nyquist")
}

func TestAnalyzeNoiseWindow(t *testing.T) {
	set := connectionSet(3, map[[2]int]float64{{2, 2}: 0.0001})

	whole, err := Extractor{}.Analyze(models.KindPSP, set, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, whole.Failure.NoiseStd, 1e-6)
	assert.Zero(t, whole.Failure.Failures)

	baseline, err := Extractor{}.Analyze(models.KindPSP, set, &models.AnalysisParams{NoiseWindow: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, baseline.Failure.NoiseStd, 1e-6)
	assert.Equal(t, 1, baseline.Failure.Failures)
}

func TestAnalyzeBaselineSampleInterval(t *testing.T) {
	set := &traces.SweepSet{Sweeps: []models.Trace{{Label: "a", Values: make([]float64, 5000)}}}
	for i := range set.Sweeps[0].Values {
		set.Sweeps[0].Values[i] = -68
	}
	res, err := Extractor{}.Analyze(models.KindBaseline, set, &models.AnalysisParams{StimStart: 100, SampleInterval: 0.0001})
	require.NoError(t, err)
	require.Len(t, res.Baseline, 1)
	assert.InDelta(t, -68.0, res.Baseline[0].VoltageBase, 1e-9)
}
