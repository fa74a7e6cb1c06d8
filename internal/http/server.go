package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cartridge/multipolicy/internal/metrics"
	"github.com/cartridge/multipolicy/internal/middleware"
	"github.com/cartridge/multipolicy/internal/module"
	"github.com/cartridge/multipolicy/internal/policy"
)

const maxForwardBody = 1 << 20

// Server wires HTTP handlers to the multi-policy router.
type Server struct {
	router  *module.MultiModule
	sampler *policy.Categorical
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(router *module.MultiModule, logger zerolog.Logger) *Server {
	return &Server{
		router:  router,
		sampler: policy.NewCategorical(),
		metrics: metrics.NewCollector(logger),
		logger:  logger,
	}
}

// ForwardRequest is the body accepted by the forward endpoint.
type ForwardRequest struct {
	Mode  module.Mode                       `json:"mode"`
	Batch map[string]map[string]module.Rows `json:"batch"`
	// SelectActions adds one action per row: greedy in inference mode,
	// sampled otherwise.
	SelectActions bool `json:"select_actions,omitempty"`
}

// ForwardResponse carries per-policy output slots.
type ForwardResponse struct {
	Mode    module.Mode                       `json:"mode"`
	Outputs map[string]map[string]module.Rows `json:"outputs"`
	Actions map[string][]int                  `json:"actions,omitempty"`
}

// EncoderInfo describes the shared encoder.
type EncoderInfo struct {
	ID         string `json:"id"`
	ObsDim     int    `json:"obs_dim"`
	FeatureDim int    `json:"feature_dim"`
}

// PolicyInfo describes one registered policy head.
type PolicyInfo struct {
	ID         string `json:"id"`
	NumActions int    `json:"n_actions,omitempty"`
	HiddenDim  int    `json:"hidden_dim,omitempty"`
}

// ModulesResponse lists the registry.
type ModulesResponse struct {
	Encoder  EncoderInfo  `json:"encoder"`
	Policies []PolicyInfo `json:"policies"`
}

// Routes builds the HTTP router for the service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger, s.metrics))
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/modules", s.handleModules)
		r.Post("/forward", s.handleForward)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	enc := s.router.Encoder()
	resp := ModulesResponse{
		Encoder: EncoderInfo{
			ID:         module.SharedEncoderID,
			ObsDim:     enc.ObsDim(),
			FeatureDim: enc.FeatureDim(),
		},
	}
	for _, id := range s.router.PolicyIDs() {
		info := PolicyInfo{ID: id}
		if p, err := s.router.Policy(id); err == nil {
			if head, ok := p.(*module.PolicyHead); ok {
				info.NumActions = head.NumActions()
				info.HiddenDim = head.HiddenDim()
			}
		}
		resp.Policies = append(resp.Policies, info)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		s.writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxForwardBody)
	defer r.Body.Close()

	var req ForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("forward payload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid forward payload: "+err.Error())
		return
	}
	batch, err := module.DecodeBatches(req.Batch)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out, err := s.router.Forward(r.Context(), req.Mode, batch)
	if req.Mode.RecordsGradients() {
		// Nothing behind the server consumes recorded activations.
		s.router.ResetTraces()
	}
	s.metrics.ForwardPass(req.Mode.String(), len(batch), time.Since(start), err)
	if err != nil {
		s.respondError(w, err)
		return
	}
	resp := ForwardResponse{Mode: req.Mode, Outputs: module.EncodeBatches(out)}
	if req.SelectActions {
		resp.Actions, err = policy.SelectAll(policy.ForMode(req.Mode, s.sampler), out)
		if err != nil {
			s.respondError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, module.ErrUnknownModule):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, module.ErrEmptyBatch):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, module.ErrMissingSlot),
		errors.Is(err, module.ErrShapeMismatch),
		errors.Is(err, module.ErrInvalidMode):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("forward pass failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
