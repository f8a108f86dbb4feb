package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"preclear_disk/internal/app"
	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/preclear"
	"preclear_disk/internal/security"
)

// Backend is the set of operations behind the request surface.
type Backend interface {
	GetDisks(ctx context.Context) ([]app.DiskInfo, error)
	Script(ctx context.Context) preclear.ScriptInfo
	StartPreclear(ctx context.Context, device string, opts preclear.Options) (preclear.Launch, error)
	StopPreclear(ctx context.Context, device string) error
	ClearPreclear(ctx context.Context, device string) error
	ShowPreclear(ctx context.Context, device string) (string, bool, error)
	GetSystemInfo(ctx context.Context) app.SystemInfo
}

const reloadParent = "<script>parent.location=parent.location;</script>"

// Server dispatches form-encoded plugin actions. POST carries get_content,
// start_preclear, stop_preclear and clear_preclear; GET carries show_preclear.
type Server struct {
	backend Backend
	cfg     *config.Config
	logger  *logging.EnterpriseLogger
	mux     *http.ServeMux
}

func NewServer(backend Backend, cfg *config.Config, logger *logging.EnterpriseLogger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		mux:     mux,
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/", s.handleAction)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.backend.GetSystemInfo(r.Context()))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		switch r.PostForm.Get("action") {
		case "get_content":
			s.handleGetContent(w, r)
		case "start_preclear":
			s.handleStart(w, r)
		case "stop_preclear":
			s.handleStop(w, r)
		case "clear_preclear":
			s.handleClear(w, r)
		default:
			writeError(w, http.StatusBadRequest, "unknown action")
		}
	case http.MethodGet:
		if r.URL.Query().Get("action") == "show_preclear" {
			s.handleShow(w, r)
			return
		}
		writeError(w, http.StatusBadRequest, "unknown action")
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	disks, err := s.backend.GetDisks(ctx)
	if err != nil {
		s.logger.Log("ERROR", "failed to list disks", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list disks")
		return
	}

	rows, err := renderRows(disks, s.backend.Script(ctx).Present)
	if err != nil {
		s.logger.Log("ERROR", "failed to render disk rows", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to render disks")
		return
	}

	info, err := json.Marshal(disks)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode disks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"disks": rows,
		"info":  string(info),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	device := formDevice(r.PostForm)
	opts, err := preclear.OptionsFromForm(r.PostForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	launch, err := s.backend.StartPreclear(r.Context(), device, opts)
	if err != nil {
		s.logger.Log("WARN", "start rejected", "device", device, "error", err.Error())
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, launch)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.finish(w, s.backend.StopPreclear(r.Context(), formDevice(r.PostForm)))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.finish(w, s.backend.ClearPreclear(r.Context(), formDevice(r.PostForm)))
}

func (s *Server) finish(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeHTML(w, http.StatusOK, reloadParent)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	device := formDevice(r.URL.Query())

	out, ok, err := s.backend.ShowPreclear(r.Context(), device)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	page, err := renderPreview(strings.TrimPrefix(device, "/dev/"), out, ok)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// formDevice reads the device field; the plugin page URL-encodes it once more.
func formDevice(form url.Values) string {
	device := form.Get("device")
	if decoded, err := url.QueryUnescape(device); err == nil {
		device = decoded
	}
	return strings.TrimSpace(device)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, security.ErrInvalidDevice), errors.Is(err, preclear.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, preclear.ErrScriptMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, app.ErrDeviceUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
