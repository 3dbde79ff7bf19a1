// Package ipc provides the HTTP API for the Openboard workflow engine.
package ipc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openboard/engine/internal/domain"
	"github.com/openboard/engine/internal/session"
	"github.com/openboard/engine/internal/store"
	"github.com/openboard/engine/internal/taskgraph"
	"github.com/openboard/engine/internal/workflow"
)

// Handler holds all dependencies for the HTTP handlers. Every write path
// takes the session's lock first; the engine itself does not arbitrate
// concurrent callers.
type Handler struct {
	Engine    *workflow.Engine
	Syncer    *taskgraph.Syncer
	Locker    *session.Locker
	Registry  *workflow.Registry
	DB        *sql.DB
	EventRepo *store.EventRepo
	DocRepo   *store.DocumentRepo
}

// CreateSessionRequest is the body for POST /api/v1/session.
type CreateSessionRequest struct {
	Name        string `json:"name"`
	SessionType string `json:"session_type"`
	Items       []struct {
		Type string `json:"type"`
	} `json:"items"`
}

// UpdateItemRequest is the body for POST .../item/{number}.
type UpdateItemRequest struct {
	Status string `json:"status"`
}

// SetCurrentItemRequest is the body for POST .../current-item.
type SetCurrentItemRequest struct {
	Number int `json:"number"`
}

// PutDocumentRequest is the body for PUT .../documents.
type PutDocumentRequest struct {
	Kind       string `json:"kind"`
	ItemNumber int    `json:"item_number"`
	Content    string `json:"content"`
}

// AdvanceResponse reports the session's state after one resolver step.
type AdvanceResponse struct {
	StateID string `json:"state_id"`
	Skill   string `json:"skill,omitempty"`
	Label   string `json:"label"`
	Done    bool   `json:"done"`
}

// SkillResponse is the reverse skill lookup result.
type SkillResponse struct {
	Skill   string `json:"skill"`
	StateID string `json:"state_id"`
	Label   string `json:"label"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "workflow": h.Registry.Name()})
}

// CreateSession handles POST /api/v1/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "name is required"})
		return
	}

	items := make([]domain.WorkItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.WorkItem{Type: domain.ItemType(it.Type)})
	}

	h.Locker.Register(req.Name)
	unlock, err := h.Locker.Lock(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	if err := h.Engine.StartSession(r.Context(), req.Name, domain.SessionType(req.SessionType), items); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.Engine.GetSession(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetSession handles GET /api/v1/session/{name}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state, err := h.Engine.GetSession(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Locker.Register(name)
	writeJSON(w, http.StatusOK, state)
}

// Advance handles POST /api/v1/session/{name}/advance.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.Locker.Register(name)
	unlock, err := h.Locker.Lock(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	state, err := h.Engine.Advance(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := AdvanceResponse{
		StateID: state.StateID,
		Label:   workflow.StateLabel(state.StateID),
		Done:    state.Status == domain.SessionDone,
	}
	if ws, err := h.Registry.State(state.StateID); err == nil {
		resp.Skill = ws.Skill
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateItem handles POST /api/v1/session/{name}/item/{number}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid item number"})
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	h.Locker.Register(name)
	unlock, err := h.Locker.Lock(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	item, err := h.Engine.UpdateItem(r.Context(), name, number, domain.ItemStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// SetCurrentItem handles POST /api/v1/session/{name}/current-item.
func (h *Handler) SetCurrentItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetCurrentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	h.Locker.Register(name)
	unlock, err := h.Locker.Lock(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	if err := h.Engine.SetCurrentItem(r.Context(), name, req.Number); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncTasks handles POST /api/v1/session/{name}/tasks/sync.
func (h *Handler) SyncTasks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.Locker.Register(name)
	if err := h.Locker.CheckSyncRate(name); err != nil {
		writeError(w, err)
		return
	}
	unlock, err := h.Locker.Lock(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	state, err := h.Syncer.Sync(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CompleteTask handles POST /api/v1/session/{name}/tasks/{taskID}/complete.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	taskID := chi.URLParam(r, "taskID")

	h.Locker.Register(name)
	unlock, err := h.Locker.Lock(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unlock()

	state, err := h.Engine.MarkTaskComplete(r.Context(), name, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// PutDocument handles PUT /api/v1/session/{name}/documents.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req PutDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	kind := domain.DocumentKind(req.Kind)
	if kind != domain.DocTaskGraph && kind != domain.DocItemTasks {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "unknown document kind"})
		return
	}

	doc := domain.Document{
		Session:    name,
		Kind:       kind,
		ItemNumber: req.ItemNumber,
		Content:    req.Content,
		UpdatedAt:  time.Now().Unix(),
	}
	if err := h.DocRepo.Put(r.Context(), h.DB, doc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unregister handles DELETE /api/v1/session/{name}. The session row is
// kept; only the lock state is released.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.Locker.Unregister(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// GetSkill handles GET /api/v1/skills/{skill} — the reverse lookup used by
// drivers that report completion by capability name.
func (h *Handler) GetSkill(w http.ResponseWriter, r *http.Request) {
	skill := chi.URLParam(r, "skill")
	state, err := h.Registry.StateForSkill(skill)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SkillResponse{
		Skill:   skill,
		StateID: state.ID,
		Label:   workflow.StateLabel(state.ID),
	})
}

// ListEvents handles GET /api/v1/session/{name}/events?since_seq=N.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sinceSeq := int64(0)
	if s := r.URL.Query().Get("since_seq"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			sinceSeq = parsed
		}
	}

	events, err := h.EventRepo.ListBySession(r.Context(), h.DB, name, sinceSeq)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.WorkflowEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StreamEvents handles GET /api/v1/session/{name}/events/stream (SSE).
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, err := h.EventRepo.ListBySession(r.Context(), h.DB, name, 0)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	for _, ev := range events {
		writeSSEEvent(w, flusher, ev)
	}

	lastSeq := int64(0)
	if len(events) > 0 {
		lastSeq = events[len(events)-1].SeqNo
	}

	ctx := r.Context()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newEvents, err := h.EventRepo.ListBySession(ctx, h.DB, name, lastSeq)
			if err != nil {
				return
			}
			for _, ev := range newEvents {
				writeSSEEvent(w, flusher, ev)
				lastSeq = ev.SeqNo
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *domain.InvalidTransitionError:
		writeJSON(w, http.StatusUnprocessableEntity, APIError{Code: e.Code(), Message: e.Error()})
		return
	case *domain.CycleError:
		writeJSON(w, http.StatusUnprocessableEntity, APIError{Code: e.Code(), Message: e.Error()})
		return
	case *domain.EngineError:
		status := http.StatusInternalServerError
		switch e.Code {
		case domain.ErrSessionNotFound.Code, domain.ErrItemNotFound.Code, domain.ErrDocumentNotFound.Code, domain.ErrUnknownSkill.Code, domain.ErrUnknownState.Code:
			status = http.StatusNotFound
		case domain.ErrDuplicateSession.Code, domain.ErrOptimisticLock.Code:
			status = http.StatusConflict
		case domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		case domain.ErrNoTasksFound.Code:
			status = http.StatusPreconditionFailed
		case domain.ErrInvalidTransition.Code, domain.ErrSessionDone.Code, domain.ErrNoTransition.Code:
			status = http.StatusUnprocessableEntity
		case domain.ErrConfigInvalid.Code, domain.ErrTaskMissingID.Code, domain.ErrDuplicateTaskID.Code, domain.ErrUnknownStatus.Code:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Code: e.Code, Message: e.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.WorkflowEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
