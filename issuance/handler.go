package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/internal/log"
)

// DigestHeader carries the canonical digest of the issued credential.
const DigestHeader = "X-Credential-Digest"

const maxApplicationSize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Handler serves the issuer HTTP API.
type Handler struct {
	service  *Service
	gatherer prometheus.Gatherer
}

// HandlerOpt configures a Handler.
type HandlerOpt func(*Handler)

// WithMetricsEndpoint serves g at /metrics.
func WithMetricsEndpoint(g prometheus.Gatherer) HandlerOpt {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// NewHandler returns the HTTP API of service.
func NewHandler(service *Service, opts ...HandlerOpt) *Handler {
	h := &Handler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router. Requests are logged with the logger in ctx.
func (h *Handler) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.ChiMiddleware(ctx))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/credentials", h.IssueCredentials)
		r.Get("/manifests", h.ListManifests)
		r.Get("/manifests/{id}", h.GetManifest)
	})
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// IssueCredentials answers a Credential Application with a fulfillment token.
func (h *Handler) IssueCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxApplicationSize))
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "cannot read request body"})
		return
	}

	res, err := h.service.Issue(ctx, body)
	if err != nil {
		var verr *verification.Error
		switch {
		case errors.Is(err, ErrUnknownManifest):
			writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		case errors.As(err, &verr):
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: string(verr.Kind)})
		default:
			log.Error(ctx, "issuance failed", err)
			writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "issuance failed"})
		}
		return
	}

	if res.Digest != "" {
		w.Header().Set(DigestHeader, res.Digest)
	}
	writeJSON(ctx, w, http.StatusOK, res.Token)
}

// ListManifests returns every published manifest.
func (h *Handler) ListManifests(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.service.Registry().Manifests())
}

// GetManifest returns one manifest.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, ok := h.service.Registry().Manifest(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: "manifest not found"})
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, m)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(ctx, "failed to write response", err)
	}
}
