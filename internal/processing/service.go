package processing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/internal/storage"
	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

type ProcessingService interface {
	ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error
}

type processingService struct {
	store      storage.TraceStore
	repository repository.AnalysisRepository
	extractor  Extractor
}

func NewProcessingService(store storage.TraceStore, repo repository.AnalysisRepository, extractor Extractor) ProcessingService {
	return &processingService{
		store:      store,
		repository: repo,
		extractor:  extractor,
	}
}

// fail records msg on the analysis. Processing errors are reported through
// the analysis status, so only a failing status update is returned.
func (s *processingService) fail(ctx context.Context, id uuid.UUID, msg string, cause error) error {
	log.Warn().Err(cause).Str("analysisID", id.String()).Msg(msg)
	if err := s.repository.UpdateError(ctx, id, msg); err != nil {
		return fmt.Errorf("failed to mark analysis failed: %w", err)
	}
	return nil
}

// discard removes an uploaded trace that cannot be analysed. A new analysis
// needs a new upload, so the object would only linger in the bucket.
func (s *processingService) discard(ctx context.Context, id uuid.UUID, key string) {
	if err := s.store.DeleteFile(ctx, key); err != nil {
		log.Warn().Err(err).Str("analysisID", id.String()).Str("traceKey", key).Msg("Failed to delete rejected trace")
		return
	}
	log.Info().Str("analysisID", id.String()).Str("traceKey", key).Msg("Rejected trace deleted")
}

func (s *processingService) ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	// Step 1: Update to processing status
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 10); err != nil {
		return err
	}

	// Step 2: Get analysis details
	analysis, err := s.repository.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis.TraceKey == nil {
		return s.fail(ctx, analysisID, "Analysis has no trace file", nil)
	}

	// Step 3: Download the trace file
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 20); err != nil {
		return err
	}
	data, err := s.store.DownloadFile(ctx, *analysis.TraceKey)
	if err != nil {
		return s.fail(ctx, analysisID, "Failed to download trace", err)
	}

	set, err := traces.Decode(data, analysis.MimeType)
	if err != nil {
		s.discard(ctx, analysisID, *analysis.TraceKey)
		return s.fail(ctx, analysisID, fmt.Sprintf("Failed to parse trace: %v", err), err)
	}
	log.Info().
		Str("analysisID", analysis.ID).
		Str("kind", analysis.Kind).
		Int("sweeps", len(set.Sweeps)).
		Int("samples", set.Len()).
		Msg("Trace decoded")

	// Step 4: Extract features
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 50); err != nil {
		return err
	}
	results, err := s.extractor.Analyze(analysis.Kind, set, analysis.Params)
	if err != nil {
		s.discard(ctx, analysisID, *analysis.TraceKey)
		return s.fail(ctx, analysisID, fmt.Sprintf("Feature extraction failed: %v", err), err)
	}

	// Step 5: Prepare results
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 80); err != nil {
		return err
	}
	results.ID = uuid.New().String()
	results.AnalysisID = analysis.ID
	if results.Failure != nil {
		log.Info().
			Str("analysisID", analysis.ID).
			Int("failures", results.Failure.Failures).
			Int("total", results.Failure.Total).
			Float64("rate", results.Failure.Rate).
			Msg("Failure rate computed")
	}

	// Step 6: Store results
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 90); err != nil {
		return err
	}
	if err := s.repository.StoreResults(ctx, results); err != nil {
		return err
	}

	// Step 7: Mark complete
	return s.repository.UpdateStatus(ctx, analysisID, models.StatusCompleted, 100)
}
