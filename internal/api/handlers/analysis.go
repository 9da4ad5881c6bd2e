package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/cellular/internal/processing"
	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/internal/storage"
	"github.com/RMahshie/cellular/pkg/models"
)

// Upload limits for trace files
const (
	MinTraceSize = 16
	MaxTraceSize = 100 * 1024 * 1024
)

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	repo          repository.AnalysisRepository
	store         storage.TraceStore
	processingSvc processing.ProcessingService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(repo repository.AnalysisRepository, store storage.TraceStore, processingSvc processing.ProcessingService) *AnalysisHandler {
	return &AnalysisHandler{
		repo:          repo,
		store:         store,
		processingSvc: processingSvc,
	}
}

func traceExt(mimeType string) string {
	switch mimeType {
	case "text/csv":
		return ".csv"
	case "application/json":
		return ".json"
	default:
		return ".dat"
	}
}

// CreateAnalysis creates a new analysis and returns an upload URL
func (h *AnalysisHandler) CreateAnalysis(ctx context.Context, req *models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error) {
	body := req.Body
	log.Info().Int64("fileSize", body.FileSize).Str("kind", body.Kind).Msg("Creating new analysis")

	if body.FileSize < MinTraceSize {
		return nil, huma.Error400BadRequest("Trace file too small to hold a recording.", nil)
	}
	if body.FileSize > MaxTraceSize {
		return nil, huma.Error400BadRequest("Trace file too large. Split the sweeps into several files.", nil)
	}
	switch body.Kind {
	case models.KindPSP, models.KindFiring, models.KindBaseline:
	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown analysis kind %q.", body.Kind), nil)
	}

	analysisID := uuid.New()
	traceKey := fmt.Sprintf("traces/%s%s", analysisID, traceExt(body.MimeType))

	uploadURL, err := h.store.GenerateUploadURL(ctx, traceKey, body.MimeType)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidContentType) {
			return nil, huma.Error400BadRequest("Trace format not supported. Use .dat, CSV or JSON.", err)
		}
		return nil, huma.Error400BadRequest("Failed to prepare upload. Please try again.", err)
	}

	now := time.Now()
	analysis := &models.Analysis{
		ID:        analysisID.String(),
		SessionID: body.SessionID,
		Kind:      body.Kind,
		Status:    models.StatusPending,
		Progress:  0,
		TraceKey:  &traceKey,
		MimeType:  body.MimeType,
		Params:    body.Params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.Create(ctx, analysis); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create analysis", err)
	}

	log.Info().Str("analysisID", analysis.ID).Str("traceKey", traceKey).Msg("Analysis created, returning upload URL")
	return &models.CreateAnalysisResponse{
		Body: models.CreateAnalysisResponseBody{
			ID:        analysis.ID,
			UploadURL: uploadURL,
			ExpiresIn: int(storage.UploadExpiry.Seconds()),
		},
	}, nil
}

// lookup parses id and loads the analysis, mapping failures to HTTP errors
func (h *AnalysisHandler) lookup(ctx context.Context, id string) (uuid.UUID, *models.Analysis, error) {
	analysisID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, nil, huma.Error400BadRequest("Invalid analysis ID", err)
	}
	analysis, err := h.repo.GetByID(ctx, analysisID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, nil, huma.Error404NotFound("Analysis not found", err)
	}
	if err != nil {
		return uuid.Nil, nil, huma.Error500InternalServerError("Failed to load analysis", err)
	}
	return analysisID, analysis, nil
}

// GetAnalysisStatus returns the current status of an analysis
func (h *AnalysisHandler) GetAnalysisStatus(ctx context.Context, req *models.GetAnalysisStatusRequest) (*models.GetAnalysisStatusResponse, error) {
	analysisID, analysis, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	message := generateStatusMessage(analysis.Status, analysis.Progress)
	if analysis.Status == models.StatusFailed && analysis.ErrorMsg != nil {
		message = *analysis.ErrorMsg
	}

	var resultsID *string
	if analysis.Status == models.StatusCompleted {
		results, err := h.repo.GetResults(ctx, analysisID)
		if err == nil && results != nil {
			resultsID = &results.ID
		}
	}

	return &models.GetAnalysisStatusResponse{
		Body: models.GetAnalysisStatusResponseBody{
			ID:        analysis.ID,
			Status:    analysis.Status,
			Progress:  analysis.Progress,
			Message:   message,
			ResultsID: resultsID,
		},
	}, nil
}

// GetAnalysisResults returns the analysis results
func (h *AnalysisHandler) GetAnalysisResults(ctx context.Context, req *models.GetAnalysisResultsRequest) (*models.GetAnalysisResultsResponse, error) {
	analysisID, analysis, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if analysis.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Analysis not yet completed",
			fmt.Errorf("analysis status is %s", analysis.Status))
	}

	results, err := h.repo.GetResults(ctx, analysisID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get results", err)
	}

	var traceURL string
	if analysis.TraceKey != nil {
		traceURL, err = h.store.GenerateDownloadURL(ctx, *analysis.TraceKey)
		if err != nil {
			log.Warn().Err(err).Str("analysisID", analysis.ID).Msg("Failed to presign trace download")
			traceURL = ""
		}
	}

	return &models.GetAnalysisResultsResponse{
		Body: models.GetAnalysisResultsResponseBody{
			ID:         results.ID,
			Kind:       analysis.Kind,
			Connection: results.Connection,
			Failure:    results.Failure,
			MeanTrace:  results.MeanTrace,
			Spikes:     results.Spikes,
			Baseline:   results.Baseline,
			TraceURL:   traceURL,
			CreatedAt:  results.CreatedAt,
		},
	}, nil
}

// ListSessionAnalyses returns every analysis created by a session
func (h *AnalysisHandler) ListSessionAnalyses(ctx context.Context, req *models.ListSessionAnalysesRequest) (*models.ListSessionAnalysesResponse, error) {
	analyses, err := h.repo.GetBySessionID(ctx, req.SessionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list analyses", err)
	}

	resp := &models.ListSessionAnalysesResponse{}
	resp.Body.SessionID = req.SessionID
	resp.Body.Analyses = make([]models.AnalysisSummary, 0, len(analyses))
	for _, a := range analyses {
		resp.Body.Analyses = append(resp.Body.Analyses, models.AnalysisSummary{
			ID:          a.ID,
			Kind:        a.Kind,
			Status:      a.Status,
			Progress:    a.Progress,
			CreatedAt:   a.CreatedAt,
			CompletedAt: a.CompletedAt,
		})
	}
	return resp, nil
}

// StartProcessing starts processing an uploaded trace file
func (h *AnalysisHandler) StartProcessing(ctx context.Context, req *models.StartProcessingRequest) (*models.StartProcessingResponse, error) {
	analysisID, analysis, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	switch analysis.Status {
	case models.StatusProcessing:
		return nil, huma.Error409Conflict("Analysis is already processing", nil)
	case models.StatusCompleted:
		return nil, huma.Error409Conflict("Analysis already completed", nil)
	}

	log.Info().Str("analysisID", analysisID.String()).Msg("Starting background processing goroutine")
	go func() {
		if err := h.processingSvc.ProcessAnalysis(context.Background(), analysisID); err != nil {
			log.Error().Err(err).Str("analysisID", analysisID.String()).Msg("Processing failed")
			_ = h.repo.UpdateError(context.Background(), analysisID, fmt.Sprintf("Processing failed: %v", err))
		}
	}()

	resp := &models.StartProcessingResponse{}
	resp.Body.Message = "Processing started successfully"
	return resp, nil
}

// generateStatusMessage creates a human-readable status message
func generateStatusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Waiting for trace upload..."
	case models.StatusProcessing:
		switch {
		case progress < 20:
			return "Starting analysis..."
		case progress < 50:
			return "Downloading trace file..."
		case progress < 80:
			return "Extracting features..."
		default:
			return "Finalizing results..."
		}
	case models.StatusCompleted:
		return "Analysis complete!"
	case models.StatusFailed:
		return "Analysis failed. Please try again."
	default:
		return "Unknown status"
	}
}
