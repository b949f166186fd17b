package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/interview"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/orchestration"
	"github.com/spboyer/staffeval/internal/store"
	"github.com/spboyer/staffeval/internal/synthesis"
	"github.com/spboyer/staffeval/internal/verdict"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

const maxBodyBytes = 1 << 20

// Service is the interview pipeline as seen by the handlers.
type Service interface {
	CreateSession(ctx context.Context, req interview.CreateRequest) (*models.InterviewSession, error)
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	ListSessions(ctx context.Context) ([]*models.InterviewSession, error)
	Roles() []string
	RunTest(ctx context.Context, id string, listener events.Listener) (*models.TestResults, error)
	CancelTest(id string) bool
	DeepAnalysis(ctx context.Context, id string, req interview.DeepAnalysisRequest, listener events.Listener) (*models.DeepAnalysisRun, error)
	Verdict(ctx context.Context, id string, listener events.Listener) (*models.Verdict, error)
	Decide(ctx context.Context, id string, req interview.DecisionRequest) (*models.InterviewSession, error)
	RecordAssignment(ctx context.Context, rec models.AssignmentRecord) error
	History(ctx context.Context, role string, limit int) ([]models.AssignmentRecord, error)
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	svc Service
}

// NewHandlers creates a new Handlers backed by svc.
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleRoles lists roles with a dedicated task generator.
func (h *Handlers) HandleRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RolesResponse{Roles: h.svc.Roles()})
}

// HandleSessions lists every session, newest first.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateSession stores a new session in status briefing.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req interview.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleSessionDetail returns the full session record.
func (h *Handlers) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleTest streams the test phase.
func (h *Handlers) HandleTest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.stream(w, r, func(ctx context.Context, l events.Listener) error {
		_, err := h.svc.RunTest(ctx, id, l)
		return err
	})
}

// HandleCancelTest raises the cancel token of the active test run.
func (h *Handlers) HandleCancelTest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.svc.GetSession(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	if !h.svc.CancelTest(id) {
		writeError(w, http.StatusConflict, fmt.Sprintf("session %s has no active test run", id))
		return
	}
	writeJSON(w, http.StatusAccepted, CancelResponse{SessionID: id, Cancelled: true})
}

type deepAnalysisBody struct {
	Configs []models.VariantConfig `mapstructure:"configs"`
}

// HandleDeepAnalysis streams multi-variant synthesis for one step. The body
// may carry a "configs" list; an empty body selects the default variants.
func (h *Handlers) HandleDeepAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "step index must be an integer")
		return
	}

	var raw map[string]any
	if err := decodeJSON(w, r, &raw); err != nil {
		writeFailure(w, err)
		return
	}
	var body deepAnalysisBody
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &body,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := dec.Decode(raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	req := interview.DeepAnalysisRequest{StepIndex: &index, Configs: body.Configs}
	h.stream(w, r, func(ctx context.Context, l events.Listener) error {
		_, err := h.svc.DeepAnalysis(ctx, id, req, l)
		return err
	})
}

// HandleVerdict streams the verdict phase.
func (h *Handlers) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.stream(w, r, func(ctx context.Context, l events.Listener) error {
		_, err := h.svc.Verdict(ctx, id, l)
		return err
	})
}

// HandleDecision records the human confirmation of a verdict.
func (h *Handlers) HandleDecision(w http.ResponseWriter, r *http.Request) {
	var req interview.DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	sess, err := h.svc.Decide(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleHistory returns the most recent assignments of a role.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := verdict.HistoryDepth
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := h.svc.History(r.Context(), r.PathValue("role"), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if records == nil {
		records = []models.AssignmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleRecordAssignment appends to a role's assignment history.
func (h *Handlers) HandleRecordAssignment(w http.ResponseWriter, r *http.Request) {
	var rec models.AssignmentRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeFailure(w, err)
		return
	}
	rec.Role = r.PathValue("role")
	if err := h.svc.RecordAssignment(r.Context(), rec); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stream runs one phase against an event stream. Errors raised before the
// first event are answered as JSON; later ones end the stream with an
// error event.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, run func(context.Context, events.Listener) error) {
	es, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	defer es.Close()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("panic in stream handler", "path", r.URL.Path, "panic", p)
			if es.Started() {
				es.Fail(http.StatusInternalServerError, fmt.Sprint(p))
			} else {
				writeError(w, http.StatusInternalServerError, fmt.Sprint(p))
			}
		}
	}()

	err := run(r.Context(), es.Listen)
	if err == nil {
		return
	}
	code := statusFor(err)
	if es.Started() {
		slog.Warn("stream ended with error", "path", r.URL.Path, "error", err)
		es.Fail(code, err.Error())
		return
	}
	writeError(w, code, err.Error())
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc Service) {
	h := NewHandlers(svc)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/roles", h.HandleRoles)
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("POST /api/sessions/{id}/test", h.HandleTest)
	mux.HandleFunc("POST /api/sessions/{id}/test/cancel", h.HandleCancelTest)
	mux.HandleFunc("POST /api/sessions/{id}/steps/{index}/deep-analysis", h.HandleDeepAnalysis)
	mux.HandleFunc("POST /api/sessions/{id}/verdict", h.HandleVerdict)
	mux.HandleFunc("POST /api/sessions/{id}/decision", h.HandleDecision)
	mux.HandleFunc("GET /api/roles/{role}/history", h.HandleHistory)
	mux.HandleFunc("POST /api/roles/{role}/history", h.HandleRecordAssignment)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, interview.ErrValidation), errors.As(err, &maxErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, interview.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrStateConflict),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, store.ErrSessionExists),
		errors.Is(err, synthesis.ErrNoTestResults),
		errors.Is(err, orchestration.ErrNoTasks):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return &interview.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func writeFailure(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
