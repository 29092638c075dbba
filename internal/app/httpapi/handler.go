// Package httpapi exposes the REST surface of the sleep diary.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dreamwell/sleepdiary/internal/app/domain/entry"
	"github.com/dreamwell/sleepdiary/internal/app/metrics"
	"github.com/dreamwell/sleepdiary/internal/app/services/admin"
	"github.com/dreamwell/sleepdiary/internal/app/services/auth"
	"github.com/dreamwell/sleepdiary/internal/app/services/entries"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

// Config carries handler construction options.
type Config struct {
	// StaticDir is the directory holding the single-page client. Empty
	// disables static serving.
	StaticDir string
	// AllowedOrigins is the CORS allowlist; empty allows localhost dev
	// origins only.
	AllowedOrigins []string
	// Health reports a fatal condition that makes the process unhealthy,
	// such as a failed storage backend. Nil means always healthy.
	Health func() error
}

type handler struct {
	auth    *auth.Service
	entries *entries.Service
	admin   *admin.Service
	health  func() error
	log     *logger.Logger
}

// NewHandler builds the full route tree.
func NewHandler(authSvc *auth.Service, entriesSvc *entries.Service, adminSvc *admin.Service, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{auth: authSvc, entries: entriesSvc, admin: adminSvc, health: cfg.Health, log: log}

	r := mux.NewRouter()
	r.Use(instrumentMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/recover/question", h.recoverQuestion).Methods(http.MethodPost)
	api.HandleFunc("/recover/verify", h.recoverVerify).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(h.requireAuth)
	authed.HandleFunc("/change-password", h.changePassword).Methods(http.MethodPost)
	authed.HandleFunc("/entries", h.listEntries).Methods(http.MethodGet)
	authed.HandleFunc("/entries", h.upsertEntry).Methods(http.MethodPost)
	authed.HandleFunc("/entries/{id}", h.deleteEntry).Methods(http.MethodDelete)

	adminRoutes := api.NewRoute().Subrouter()
	adminRoutes.Use(h.requireAuth, h.requireAdmin)
	adminRoutes.HandleFunc("/admin/users", h.adminListUsers).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/admin/reset-password", h.adminResetPassword).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(newSPAHandler(cfg.StaticDir)).Methods(http.MethodGet)
	}

	return corsMiddleware(cfg.AllowedOrigins)(r)
}

// --- auth handlers -----------------------------------------------------------

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		SecQ     int    `json:"secQ"`
		SecA     string `json:"secA"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	u, token, err := h.auth.Register(r.Context(), req.Username, req.Password, req.SecQ, req.SecA)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"username": u.Username,
		"isAdmin":  u.IsAdmin,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	u, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"username": u.Username,
		"isAdmin":  u.IsAdmin,
	})
}

func (h *handler) recoverQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	question, err := h.auth.RecoveryQuestion(r.Context(), req.Username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"question": question})
}

func (h *handler) recoverVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Answer      string `json:"answer"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	if err := h.auth.RecoverPassword(r.Context(), req.Username, req.Answer, req.NewPassword); err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, h.log, apperrors.Unauthorized("no token provided"))
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	if err := h.auth.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- entry handlers ----------------------------------------------------------

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, h.log, apperrors.Unauthorized("no token provided"))
		return
	}

	list, err := h.entries.List(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if list == nil {
		list = []entry.Entry{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) upsertEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, h.log, apperrors.Unauthorized("no token provided"))
		return
	}

	var req struct {
		Date       string   `json:"date"`
		BedTime    string   `json:"bedTime"`
		WakeTime   string   `json:"wakeTime"`
		Duration   *float64 `json:"duration"`
		ScreenTime *float64 `json:"screenTime"`
		Energy     *int     `json:"energy"`
		Notes      string   `json:"notes"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	err := h.entries.Upsert(r.Context(), identity.UserID, entries.Input{
		Date:       req.Date,
		BedTime:    req.BedTime,
		WakeTime:   req.WakeTime,
		Duration:   req.Duration,
		ScreenTime: req.ScreenTime,
		Energy:     req.Energy,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, h.log, apperrors.Unauthorized("no token provided"))
		return
	}

	entryID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid entry id"))
		return
	}

	if err := h.entries.Delete(r.Context(), entryID, identity.UserID); err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- admin handlers ----------------------------------------------------------

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	reports, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handler) adminResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, h.log, apperrors.InvalidInput("invalid request body"))
		return
	}

	if err := h.admin.ResetPassword(r.Context(), req.Username, req.NewPassword); err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			h.log.WithError(err).Error("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- helpers -----------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := apperrors.StatusOf(err)
	message := "internal error"

	var se *apperrors.Error
	if errors.As(err, &se) && se.Code != apperrors.CodeInternal {
		message = se.Message
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
