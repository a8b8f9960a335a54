package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/user/proxydeck/internal/daemon"
	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/report"
	"github.com/user/proxydeck/internal/useragent"
	"github.com/user/proxydeck/internal/util"
)

// Handlers contains HTTP handlers.
type Handlers struct {
	ctx       context.Context
	workspace *provision.Workspace
	config    *util.Config
}

// NewHandlers creates new handlers. ctx bounds background fetches.
func NewHandlers(ctx context.Context, workspace *provision.Workspace, cfg *util.Config) *Handlers {
	return &Handlers{
		ctx:       ctx,
		workspace: workspace,
		config:    cfg,
	}
}

// credentialsView is what the API exposes about the stored account.
type credentialsView struct {
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
	Persist     bool   `json:"persist"`
}

func viewOf(c model.Credentials) credentialsView {
	return credentialsView{Username: c.Username, HasPassword: c.Password != "", Persist: c.Persist}
}

// credentialsUpdate is the PUT body. A missing password keeps the current one.
type credentialsUpdate struct {
	Username string  `json:"username"`
	Password *string `json:"password"`
	Persist  bool    `json:"persist"`
}

type fetchRequest struct {
	ZipCode                string `json:"zip_code"`
	SessionDurationMinutes int    `json:"session_duration_minutes"`
	EndpointCount          int    `json:"endpoint_count"`
}

// Dashboard serves the main dashboard page.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := map[string]interface{}{
		"credentials":       viewOf(h.workspace.Credentials()),
		"connection":        h.workspace.ConnectionStatus(),
		"outcome":           h.workspace.Outcome(),
		"busy":              h.workspace.Busy(),
		"default_endpoints": h.config.Acquisition.DefaultEndpoints,
		"max_endpoints":     h.config.Acquisition.MaxEndpoints,
		"session_choices":   model.SessionDurationChoices,
		"columns":           report.Columns,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := GetTemplates().ExecuteTemplate(w, "dashboard.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// UserAgentsPage serves the user-agent reference table.
func (h *Handlers) UserAgentsPage(w http.ResponseWriter, r *http.Request) {
	groups, err := useragent.Bundled()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := GetTemplates().ExecuteTemplate(w, "useragents.html", groups); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// APICredentials reads, saves or clears the provider credentials.
func (h *Handlers) APICredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, viewOf(h.workspace.Credentials()))

	case http.MethodPut, http.MethodPost:
		var body credentialsUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errors.New("invalid JSON body"), http.StatusBadRequest)
			return
		}

		creds := model.Credentials{Username: body.Username, Persist: body.Persist}
		switch current := h.workspace.Credentials(); {
		case body.Password != nil:
			creds.Password = *body.Password
		case body.Username == current.Username:
			creds.Password = current.Password
		default:
			writeError(w, &model.ValidationError{Field: "password", Message: "required when changing the username"}, http.StatusBadRequest)
			return
		}

		if err := h.workspace.SaveCredentials(creds); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, viewOf(h.workspace.Credentials()))

	case http.MethodDelete:
		if err := h.workspace.ClearCredentials(); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w)
	}
}

// APITestConnection validates the stored credentials with one probe.
func (h *Handlers) APITestConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	// A connection test may outlast the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		util.Debug("Could not clear write deadline: %v", err)
	}
	writeJSON(w, h.workspace.TestConnection(r.Context()))
}

// APIGetConnection returns the last connection test result.
func (h *Handlers) APIGetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.workspace.ConnectionStatus())
}

// APIFetchProxies starts a batch in the background and returns 202.
func (h *Handlers) APIFetchProxies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body fetchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errors.New("invalid JSON body"), http.StatusBadRequest)
			return
		}
	}
	if body.EndpointCount == 0 {
		body.EndpointCount = h.config.Acquisition.DefaultEndpoints
	}

	req := model.AcquisitionRequest{
		ZipCode:                body.ZipCode,
		SessionDurationMinutes: body.SessionDurationMinutes,
		CountryCode:            model.DefaultCountryCode,
		EndpointCount:          body.EndpointCount,
	}
	if err := req.Validate(h.config.Acquisition.MaxEndpoints); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	err := h.workspace.FetchAsync(h.ctx, req)
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, err, http.StatusBadRequest)
		return
	case errors.Is(err, provision.ErrFetchInProgress):
		writeError(w, err, http.StatusConflict)
		return
	case err != nil:
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"state": string(model.AcquisitionFetching)})
}

// APIGetProxies returns the current or last outcome.
func (h *Handlers) APIGetProxies(w http.ResponseWriter, r *http.Request) {
	outcome := h.workspace.Outcome()
	if outcome == nil {
		writeJSON(w, model.AcquisitionOutcome{State: model.AcquisitionIdle, Entries: []model.AcquisitionEntry{}, Messages: []string{}})
		return
	}
	writeJSON(w, outcome)
}

// APIGetUserAgents returns the grouped user-agent table.
func (h *Handlers) APIGetUserAgents(w http.ResponseWriter, r *http.Request) {
	groups, err := useragent.Bundled()
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, groups)
}

// APIGetStatus returns daemon and workspace status.
func (h *Handlers) APIGetStatus(w http.ResponseWriter, r *http.Request) {
	running, pid := daemon.CheckRunning(h.config.DataDir)
	creds := h.workspace.Credentials()

	status := map[string]interface{}{
		"daemon_running":  running,
		"pid":             pid,
		"has_credentials": creds.Complete(),
		"persisted":       creds.Persist,
		"busy":            h.workspace.Busy(),
		"connection":      h.workspace.ConnectionStatus().State,
	}
	if outcome := h.workspace.Outcome(); outcome != nil {
		status["records"] = len(outcome.Records())
		status["state"] = outcome.State
	}

	writeJSON(w, status)
}

// DownloadReport exports the current outcome as Markdown or CSV.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	outcome := h.workspace.Outcome()

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=proxydeck_proxies.csv")
		if err := report.WriteCSV(w, outcome); err != nil {
			util.Error("CSV export failed: %v", err)
		}
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=proxydeck_report.md")
		w.Write([]byte(report.FormatMarkdown(outcome)))
	default:
		writeError(w, errors.New("format must be md or csv"), http.StatusBadRequest)
	}
}

func strOrDash(s *string) string {
	if v := report.Str(s); v != "" {
		return v
	}
	return "-"
}

func coordOrDash(f *float64) string {
	if v := report.Coord(f); v != "" {
		return v
	}
	return "-"
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, errors.New("method not allowed"), http.StatusMethodNotAllowed)
}
