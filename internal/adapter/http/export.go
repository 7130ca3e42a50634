package http

import (
	"encoding/json"
	"net/http"

	"github.com/Strob0t/CodeForge/internal/port/export"
	"github.com/Strob0t/CodeForge/internal/service"
)

// ExportHandler serves the dedicated pushToGitHub surface (§4.16): the
// deprecated `github_export` WS control frame told callers to "use the
// export API directly" (internal/adapter/ws/controlhandler.go), and this
// is that API. It reads a session's Version-Control Store directly rather
// than going through the controller's tool surface, since exporting is a
// one-shot external-API call with no bearing on generation state.
type ExportHandler struct {
	registry *service.SessionRegistry
	client   export.Client
}

// NewExportHandler returns a handler pushing sessions' git history through
// client. A nil client makes every request fail with 503, so the endpoint
// can still be mounted in deployments that run without an export backend
// configured.
func NewExportHandler(registry *service.SessionRegistry, client export.Client) *ExportHandler {
	return &ExportHandler{registry: registry, client: client}
}

type exportRequest struct {
	RepositoryName  string `json:"repositoryName"`
	TemplateDetails string `json:"templateDetails,omitempty"`
}

type exportResponse struct {
	RepositoryURL string `json:"repositoryUrl"`
}

// HandlePush implements POST /sessions/{id}/export.
func (h *ExportHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeError(w, http.StatusServiceUnavailable, "export backend is not configured")
		return
	}

	sessionID := urlParam(r, "id")
	sess := h.registry.Get(sessionID)
	if sess == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	req, ok := readJSON[exportRequest](w, r, 1<<16)
	if !ok {
		return
	}
	if !requireField(w, req.RepositoryName, "repositoryName") {
		return
	}
	if err := sanitizeName(req.RepositoryName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	objects, err := sess.VCS.ExportGitObjects()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	var query string
	if snapshot, err := sess.Dispatch.State(); err == nil {
		var state struct {
			Query string `json:"query"`
		}
		if json.Unmarshal(snapshot, &state) == nil {
			query = state.Query
		}
	}

	result, err := h.client.PushToGitHub(r.Context(), export.PushRequest{
		SessionID:       sessionID,
		RepositoryName:  req.RepositoryName,
		GitObjects:      objects,
		Query:           query,
		TemplateDetails: req.TemplateDetails,
	})
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{RepositoryURL: result.RepositoryURL})
}
