package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/cellular/internal/api/handlers"
	"github.com/RMahshie/cellular/internal/processing"
	"github.com/RMahshie/cellular/internal/repository"
	"github.com/RMahshie/cellular/internal/storage"
	"github.com/RMahshie/cellular/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// Deps are the services the routes are served from
type Deps struct {
	Store        storage.TraceStore
	AnalysisRepo repository.AnalysisRepository
	Processing   processing.ProcessingService
	SimDt        float64
	SimCelsius   float64
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, deps Deps) {
	analysisHandler := handlers.NewAnalysisHandler(deps.AnalysisRepo, deps.Store, deps.Processing)
	simulationHandler := handlers.NewSimulationHandler(deps.SimDt, deps.SimCelsius)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "createAnalysis",
		Method:      http.MethodPost,
		Path:        "/api/analyses",
		Summary:     "Create a new analysis",
		Description: "Creates a new analysis record and returns an upload URL for the trace file",
		Tags:        []string{"Analysis"},
	}, analysisHandler.CreateAnalysis)

	huma.Register(api, huma.Operation{
		OperationID: "getAnalysisStatus",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}/status",
		Summary:     "Get analysis status",
		Description: "Returns the current status and progress of an analysis",
		Tags:        []string{"Analysis"},
	}, analysisHandler.GetAnalysisStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getAnalysisResults",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}/results",
		Summary:     "Get analysis results",
		Description: "Returns EPSP features and failure rate, spike features or baseline features",
		Tags:        []string{"Analysis"},
	}, analysisHandler.GetAnalysisResults)

	huma.Register(api, huma.Operation{
		OperationID: "listSessionAnalyses",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/analyses",
		Summary:     "List session analyses",
		Description: "Returns the analyses created by a client session, newest first",
		Tags:        []string{"Analysis"},
	}, analysisHandler.ListSessionAnalyses)

	huma.Register(api, huma.Operation{
		OperationID: "startProcessing",
		Method:      http.MethodPost,
		Path:        "/api/analyses/{id}/process",
		Summary:     "Start processing analysis",
		Description: "Starts processing an uploaded trace file",
		Tags:        []string{"Analysis"},
	}, analysisHandler.StartProcessing)

	huma.Register(api, huma.Operation{
		OperationID: "simulatePassive",
		Method:      http.MethodPost,
		Path:        "/api/simulations/passive",
		Summary:     "Passive properties protocol",
		Description: "Runs three dendritic current pulses on a ball-and-stick cell and returns the somatic voltage",
		Tags:        []string{"Simulation"},
	}, simulationHandler.PassiveProperties)

	huma.Register(api, huma.Operation{
		OperationID: "simulateSquarePulses",
		Method:      http.MethodPost,
		Path:        "/api/simulations/square-pulses",
		Summary:     "Square pulse protocol",
		Description: "Injects one 300 ms somatic pulse per amplitude and returns voltage and current traces",
		Tags:        []string{"Simulation"},
	}, simulationHandler.SquarePulses)
}
