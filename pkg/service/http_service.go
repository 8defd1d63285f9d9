package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/model"
	"github.com/open-feature/assignd/pkg/store"
	"github.com/open-feature/assignd/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

type HTTPServiceConfiguration struct {
	Port int32
}

type HTTPService struct {
	HTTPServiceConfiguration *HTTPServiceConfiguration

	Holder    *store.Holder
	Evaluator *eval.Evaluator
	// Metrics is optional. Gatherer backs /metrics and defaults to the
	// prometheus default gatherer.
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Tracer   trace.Tracer
	Logger   *log.Entry
}

type assignmentRequest struct {
	SubjectKey        string              `json:"subjectKey"`
	SubjectAttributes model.Attributes    `json:"subjectAttributes"`
	VariationType     model.VariationType `json:"variationType,omitempty"`
}

type banditRequest struct {
	SubjectKey        string                             `json:"subjectKey"`
	SubjectAttributes model.ContextAttributes            `json:"subjectAttributes"`
	Actions           map[string]model.ContextAttributes `json:"actions"`
	DefaultVariation  string                             `json:"defaultVariation"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type banditResponse struct {
	model.BanditResult
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Handler builds the router. It is exposed separately from Serve for tests.
func (h *HTTPService) Handler() http.Handler {
	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/flags/{flagKey}", func(r chi.Router) {
		r.Post("/assignment", h.assignment)
		r.Post("/details", h.details)
		r.Post("/bandit-action", h.banditAction)
	})
	r.Get("/configuration", h.configuration)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (h *HTTPService) Serve(ctx context.Context) error {
	if h.HTTPServiceConfiguration == nil {
		return errors.New("http service configuration has not been initialised")
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", h.HTTPServiceConfiguration.Port),
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		h.logger().Infof("listening on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (h *HTTPService) assignment(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, err)
		return
	}
	_, span := h.tracer().Start(r.Context(), "assignment", trace.WithAttributes(
		attribute.String("feature_flag.key", flagKey),
	))
	defer span.End()

	subject := model.Subject{Key: req.SubjectKey, Attributes: req.SubjectAttributes}
	result, err := eval.AssignObserved(h.Evaluator, h.observers(span), h.Holder.Current(), flagKey, subject, req.VariationType)
	if err != nil {
		h.handleError(err, w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPService) details(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, err)
		return
	}
	subject := model.Subject{Key: req.SubjectKey, Attributes: req.SubjectAttributes}
	// failures are part of the details, so the request itself succeeds
	_, details, _ := h.Evaluator.AssignWithDetails(h.Holder.Current(), flagKey, subject, req.VariationType)
	writeJSON(w, http.StatusOK, details)
}

func (h *HTTPService) banditAction(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")
	var req banditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, err)
		return
	}
	_, span := h.tracer().Start(r.Context(), "bandit-action", trace.WithAttributes(
		attribute.String("feature_flag.key", flagKey),
	))
	defer span.End()

	result, err := eval.BanditActionObserved(h.Evaluator, h.observers(span), h.Holder.Current(),
		flagKey, req.SubjectKey, req.SubjectAttributes, req.Actions, req.DefaultVariation)
	resp := banditResponse{BanditResult: result}
	status := http.StatusOK
	if err != nil {
		resp.ErrorCode = string(model.KindOf(err))
		resp.ErrorMessage = err.Error()
		if !isBanditFailure(err) {
			status = statusFor(err)
		}
		h.logger().WithError(err).WithField("flag", flagKey).Warn("bandit action fell back")
	}
	writeJSON(w, status, resp)
}

func (h *HTTPService) configuration(w http.ResponseWriter, _ *http.Request) {
	cfg := h.Holder.Current()
	if cfg == nil {
		h.handleError(model.ErrConfigurationMissing, w)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Metadata())
}

func (h *HTTPService) observers(span trace.Span) eval.Observers {
	obs := eval.Observers{telemetry.NewSpanObserver(span), eval.NewLogObserver(h.logger())}
	if h.Metrics != nil {
		obs = append(obs, h.Metrics.Observer())
	}
	return obs
}

func (h *HTTPService) tracer() trace.Tracer {
	if h.Tracer == nil {
		return otel.Tracer("github.com/open-feature/assignd/pkg/service")
	}
	return h.Tracer
}

func (h *HTTPService) logger() *log.Entry {
	if h.Logger == nil {
		return log.WithField("component", "http-service")
	}
	return h.Logger
}

func (h *HTTPService) badRequest(w http.ResponseWriter, err error) {
	h.logger().WithError(err).Debug("malformed request body")
	writeJSON(w, http.StatusBadRequest, errorResponse{
		ErrorCode:    "BAD_REQUEST",
		ErrorMessage: err.Error(),
	})
}

// some basic mapping of evaluation failures to HTTP
func (h *HTTPService) handleError(err error, w http.ResponseWriter) {
	status := statusFor(err)
	entry := h.logger().WithError(err)
	if status == http.StatusServiceUnavailable {
		entry.Warn("evaluation failed")
	} else {
		entry.Debug("evaluation failed")
	}
	writeJSON(w, status, errorResponse{
		ErrorCode:    string(model.KindOf(err)),
		ErrorMessage: err.Error(),
	})
}

func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.FlagNotFoundErrorCode:
		return http.StatusNotFound
	case model.TypeMismatchErrorCode:
		return http.StatusBadRequest
	case model.ConfigurationMissingErrorCode:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func isBanditFailure(err error) bool {
	switch model.KindOf(err) {
	case model.BanditNotFoundErrorCode, model.BanditModelMissingErrorCode, model.BanditSelectionFailedErrorCode:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
