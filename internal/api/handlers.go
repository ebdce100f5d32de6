package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/visaops/internal/approval"
	"github.com/punchamoorthee/visaops/internal/blob"
	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/events"
	"github.com/punchamoorthee/visaops/internal/logging"
	"github.com/punchamoorthee/visaops/internal/service"
	"github.com/punchamoorthee/visaops/internal/store"
	"github.com/punchamoorthee/visaops/internal/validation"
	"github.com/punchamoorthee/visaops/internal/wizard"
)

const moduleName = "api"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaops_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visaops_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	defaultLimit = 20
	maxLimit     = 100
	maxBodyBytes = 64 << 20
)

type Handler struct {
	visas    *service.VisaService
	refs     *service.ReferenceService
	sessions *service.SessionService
	events   events.Subscriber
	ping     func(context.Context) error
}

func NewHandler(visas *service.VisaService, refs *service.ReferenceService, sessions *service.SessionService, sub events.Subscriber, ping func(context.Context) error) *Handler {
	return &Handler{visas: visas, refs: refs, sessions: sessions, events: sub, ping: ping}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads a JSON body into dst, rejecting unknown trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// listFilter reads q, type, status, page and limit from the query string.
func listFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	f := domain.ListFilter{Search: q.Get("q"), Page: 1, Limit: defaultLimit}
	if v := q.Get("type"); v != "" {
		t, err := domain.ParseVisaType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if v := q.Get("status"); v != "" {
		s, err := domain.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errors.New("page must be a positive integer")
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = min(n, maxLimit)
	}
	return f, nil
}

// fail maps service errors onto HTTP statuses. Unknown errors are logged and
// reported as 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "Validation failed", "fields": fe})
	case errors.Is(err, service.ErrInvalidIDFormat):
		respondWithError(w, http.StatusBadRequest, service.ErrInvalidIDFormat.Error())
	case errors.Is(err, wizard.ErrUnknownStep):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrVisaNotFound),
		errors.Is(err, service.ErrBudgetNotFound),
		errors.Is(err, service.ErrReferenceNotFound),
		errors.Is(err, service.ErrAttachmentNotFound),
		errors.Is(err, service.ErrUnknownLookup):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrIdempotencyConflict):
		respondWithError(w, http.StatusConflict, "Request processing in progress")
	case errors.Is(err, service.ErrIdempotencyMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
	case errors.Is(err, budget.ErrInsufficientBudget):
		respondWithError(w, http.StatusUnprocessableEntity, "Insufficient remaining budget")
	case errors.Is(err, budget.ErrBalanceChanged),
		errors.Is(err, store.ErrConcurrentUpdate):
		respondWithError(w, http.StatusConflict, "Remaining balance changed, refresh and retry")
	case errors.Is(err, service.ErrParentNotCover),
		errors.Is(err, service.ErrParentClosed),
		errors.Is(err, service.ErrParentRequired),
		errors.Is(err, service.ErrParentNotAllowed),
		errors.Is(err, service.ErrParentTypeMismatch),
		errors.Is(err, service.ErrBadAttachment):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrOutOfRange):
		respondWithError(w, http.StatusUnprocessableEntity, "Amount out of range")
	case errors.Is(err, blob.ErrTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blob.ErrTypeNotAllowed):
		respondWithError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, approval.ErrNotApprover),
		errors.Is(err, approval.ErrNotCreator):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, approval.ErrNotPending),
		errors.Is(err, approval.ErrEmptyRoute),
		errors.Is(err, service.ErrHasChildren),
		errors.Is(err, store.ErrDuplicate):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrSessionRevoked):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	default:
		logging.Error(moduleName, "fail", r.Method+" "+r.URL.Path, nil, err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
