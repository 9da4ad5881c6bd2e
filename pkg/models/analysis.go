package models

import (
	"time"
)

// Analysis kinds
const (
	KindPSP      = "psp"      // sweep set of one synaptic connection
	KindFiring   = "firing"   // supra-threshold response traces
	KindBaseline = "baseline" // sub-threshold response traces
)

// Analysis statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// AnalysisParams tunes feature extraction for one analysis
type AnalysisParams struct {
	StimIndices    []int   `json:"stim_indices,omitempty" doc:"Sample indices of presynaptic stimulation (psp)"`
	SampleInterval float64 `json:"sample_interval,omitempty" doc:"Sampling interval in s (psp)"`
	StimStart      float64 `json:"stim_start,omitempty" doc:"Stimulus onset in ms (firing, baseline)"`
	StimEnd        float64 `json:"stim_end,omitempty" doc:"Stimulus end in ms (firing, baseline)"`
	Threshold      float64 `json:"threshold,omitempty" doc:"Spike detection threshold in mV (firing)"`
	SmoothCutoffHz float64 `json:"smooth_cutoff_hz,omitempty" doc:"Low-pass cutoff applied before extraction, 0 disables"`
	NoiseWindow    bool    `json:"noise_window,omitempty" doc:"Measure noise on the baseline before the first stimulation only, instead of the whole sweep (psp)"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// CreateAnalysisRequestBody is the body of a create analysis request
type CreateAnalysisRequestBody struct {
	SessionID string          `json:"session_id" minLength:"10" maxLength:"50" required:"true" doc:"Client session identifier"`
	Kind      string          `json:"kind" enum:"psp,firing,baseline" required:"true" doc:"Analysis kind"`
	FileSize  int64           `json:"file_size" minimum:"16" maximum:"104857600" required:"true" doc:"Trace file size in bytes"`
	MimeType  string          `json:"mime_type" enum:"application/octet-stream,text/csv,application/json" required:"true" doc:"Trace file MIME type"`
	Params    *AnalysisParams `json:"params,omitempty" doc:"Extraction parameters, defaults apply when omitted"`
}

// CreateAnalysisRequest represents a request to create a new analysis
type CreateAnalysisRequest struct {
	Body CreateAnalysisRequestBody
}

// CreateAnalysisResponseBody is the body of the create analysis response
type CreateAnalysisResponseBody struct {
	ID        string `json:"id" doc:"Analysis unique identifier"`
	UploadURL string `json:"upload_url" doc:"Pre-signed URL for trace file upload"`
	ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
}

// CreateAnalysisResponse represents the response from creating an analysis
type CreateAnalysisResponse struct {
	Body CreateAnalysisResponseBody
}

// GetAnalysisStatusRequest represents a request to get analysis status
type GetAnalysisStatusRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// GetAnalysisStatusResponseBody is the body of the status response
type GetAnalysisStatusResponseBody struct {
	ID        string  `json:"id" doc:"Analysis ID"`
	Status    string  `json:"status" enum:"pending,processing,completed,failed" doc:"Analysis status"`
	Progress  int     `json:"progress" minimum:"0" maximum:"100" doc:"Analysis progress percentage"`
	Message   string  `json:"message,omitempty" doc:"Human-readable status message"`
	ResultsID *string `json:"results_id,omitempty" doc:"Results ID when analysis completes"`
}

// GetAnalysisStatusResponse represents the current status of an analysis
type GetAnalysisStatusResponse struct {
	Body GetAnalysisStatusResponseBody
}

// GetAnalysisResultsRequest represents a request to get analysis results
type GetAnalysisResultsRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// GetAnalysisResultsResponseBody is the body of the results response
type GetAnalysisResultsResponseBody struct {
	ID         string              `json:"id" doc:"Results ID"`
	Kind       string              `json:"kind" doc:"Analysis kind"`
	Connection *ConnectionFeatures `json:"connection,omitempty" doc:"Per-sweep EPSP features (psp)"`
	Failure    *FailureReport      `json:"failure,omitempty" doc:"Failure classification (psp)"`
	MeanTrace  []float64           `json:"mean_trace,omitempty" doc:"Sample-wise mean of all sweeps (psp)"`
	Spikes     []SpikeFeatures     `json:"spikes,omitempty" doc:"Spike features per trace (firing)"`
	Baseline   []BaselineFeatures  `json:"baseline,omitempty" doc:"Baseline features per trace (baseline)"`
	TraceURL   string              `json:"trace_url,omitempty" doc:"Time-limited download URL of the analysed trace file"`
	CreatedAt  time.Time           `json:"created_at" doc:"Results creation timestamp"`
}

// GetAnalysisResultsResponse represents the complete analysis results
type GetAnalysisResultsResponse struct {
	Body GetAnalysisResultsResponseBody
}

// ListSessionAnalysesRequest represents a request for the analyses of a session
type ListSessionAnalysesRequest struct {
	SessionID string `path:"id" minLength:"10" maxLength:"50" doc:"Client session identifier"`
}

// AnalysisSummary is one entry of a session listing
type AnalysisSummary struct {
	ID          string     `json:"id" doc:"Analysis ID"`
	Kind        string     `json:"kind" doc:"Analysis kind"`
	Status      string     `json:"status" enum:"pending,processing,completed,failed" doc:"Analysis status"`
	Progress    int        `json:"progress" doc:"Analysis progress percentage"`
	CreatedAt   time.Time  `json:"created_at" doc:"Analysis creation timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" doc:"Completion timestamp"`
}

// ListSessionAnalysesResponse lists the analyses of a session, newest first
type ListSessionAnalysesResponse struct {
	Body struct {
		SessionID string            `json:"session_id" doc:"Client session identifier"`
		Analyses  []AnalysisSummary `json:"analyses" doc:"Analyses of the session, newest first"`
	}
}

// StartProcessingRequest represents a request to start processing an uploaded file
type StartProcessingRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// StartProcessingResponse represents the response from starting processing
type StartProcessingResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// PassiveSimulationRequest runs the passive-properties protocol with new dendrite parameters
type PassiveSimulationRequest struct {
	Body struct {
		Diam float64 `json:"diam" minimum:"0.01" maximum:"100" default:"1" doc:"Dendrite diameter in um"`
		Ra   float64 `json:"ra" minimum:"1" maximum:"10000" default:"300" doc:"Axial resistivity in ohm cm"`
		Cm   float64 `json:"cm" minimum:"0.01" maximum:"100" default:"1" doc:"Specific membrane capacitance in uF/cm2"`
	}
}

// SquarePulsesRequest runs one square current pulse per amplitude
type SquarePulsesRequest struct {
	Body struct {
		Amplitudes []float64 `json:"amplitudes" minItems:"1" maxItems:"20" required:"true" doc:"Pulse amplitudes in nA"`
	}
}

// SimulationResponse carries the recorded traces of a simulation run
type SimulationResponse struct {
	Body Recording
}

// Analysis represents the core analysis entity (for internal use)
type Analysis struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	TraceKey    *string         `json:"trace_key,omitempty"`
	MimeType    string          `json:"mime_type"`
	Params      *AnalysisParams `json:"params,omitempty"`
	ErrorMsg    *string         `json:"error_message,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// AnalysisResults represents the stored analysis results
type AnalysisResults struct {
	ID         string              `json:"id"`
	AnalysisID string              `json:"analysis_id"`
	Connection *ConnectionFeatures `json:"connection,omitempty"`
	Failure    *FailureReport      `json:"failure,omitempty"`
	MeanTrace  []float64           `json:"mean_trace,omitempty"`
	Spikes     []SpikeFeatures     `json:"spikes,omitempty"`
	Baseline   []BaselineFeatures  `json:"baseline,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}
