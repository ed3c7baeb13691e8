package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/core/ports"
	"github.com/promptops/llmpipe/internal/pipeline"
)

// ProcessRequest is the request body for POST /process.
type ProcessRequest struct {
	InputText    string `json:"input_text"`
	Context      any    `json:"context,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
}

// ProcessResponse is the success body for POST /process.
type ProcessResponse struct {
	Output           string        `json:"output"`
	RequestID        string        `json:"request_id"`
	ProcessingTimeMS float64       `json:"processing_time_ms"`
	TokenUsage       *domain.Usage `json:"token_usage,omitempty"`
}

// Handler serves the pipeline endpoints. The interaction store is optional;
// when present, each call is recorded off the request path.
type Handler struct {
	pipeline *pipeline.Pipeline
	store    ports.InteractionStore
	logger   *slog.Logger
}

// NewHandler creates the pipeline HTTP handler. store may be nil to disable
// interaction recording.
func NewHandler(p *pipeline.Pipeline, store ports.InteractionStore, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, store: store, logger: logger}
}

// HandleProcess runs one pipeline call. Failure envelopes map to HTTP 500
// with the envelope's error string.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	start := time.Now()

	var opts []pipeline.ProcessOption
	if req.TemplateName != "" {
		opts = append(opts, pipeline.WithTemplate(req.TemplateName))
	}

	result := h.pipeline.Process(r.Context(), req.InputText, req.Context, opts...)
	elapsed := time.Since(start)

	h.recordInteraction(r.Context(), &req, result, elapsed)

	if result.Failed() {
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Output:           result.FinalOutput,
		RequestID:        GetRequestID(r.Context()),
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		TokenUsage:       result.TokenUsage,
	})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// HandleInteractions lists recent interaction records.
func (h *Handler) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "interaction recording is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	interactions, err := h.store.ListInteractions(r.Context(), limit)
	if err != nil {
		h.logger.Error("list interactions", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
}

// recordInteraction persists the call asynchronously so storage latency
// never delays the response.
func (h *Handler) recordInteraction(ctx context.Context, req *ProcessRequest, result *domain.Result, elapsed time.Duration) {
	if h.store == nil {
		return
	}

	interaction := &domain.Interaction{
		ID:           GetRequestID(ctx),
		InputText:    req.InputText,
		TemplateName: req.TemplateName,
		Status:       "success",
		FinalOutput:  result.FinalOutput,
		TokenUsage:   result.TokenUsage,
		Duration:     elapsed,
		CreatedAt:    time.Now(),
	}
	if req.Context != nil {
		if b, err := json.Marshal(req.Context); err == nil {
			interaction.Context = string(b)
		}
	}
	if result.Failed() {
		interaction.Status = domain.StatusFailed
		interaction.FinalOutput = ""
		interaction.Error = result.Error
	}

	go func() {
		// Detached from the request context so cancellation does not drop
		// the record.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.SaveInteraction(saveCtx, interaction); err != nil {
			h.logger.Error("save interaction",
				slog.String("id", interaction.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
