package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bherbruck/scriptcache/internal/script"
	"github.com/bherbruck/scriptcache/internal/storage"
)

// ScriptEngine is the part of the script engine the API drives
type ScriptEngine interface {
	Execute(ctx context.Context, name string, keys []string, args []any) (any, error)
	ExecuteByDigest(ctx context.Context, name string, keys []string, args []any) (any, error)
	RegisterOne(name, body string)
	Status() []script.ScriptStatus
	InvalidateCache() int
}

// Handler holds dependencies for API handlers
type Handler struct {
	engine ScriptEngine
	db     *storage.DB // nil when script storage is disabled
}

// NewHandler creates a new API handler
func NewHandler(engine ScriptEngine, db *storage.DB) *Handler {
	return &Handler{
		engine: engine,
		db:     db,
	}
}

// ListScripts godoc
// @Summary List scripts
// @Description List registered scripts and whether their digest is cached
// @Tags Scripts
// @Produce json
// @Success 200 {object} ListScriptsResponse
// @Router /scripts [get]
func (h *Handler) ListScripts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListScriptsResponse{Scripts: h.engine.Status()})
}

// ListStoredScripts godoc
// @Summary List stored scripts
// @Description List script rows persisted in the database, including disabled ones
// @Tags Scripts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ListStoredScriptsResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Script storage is disabled"
// @Failure 500 {object} ErrorResponse
// @Router /scripts/stored [get]
func (h *Handler) ListStoredScripts(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusNotFound, "script storage is disabled")
		return
	}

	scripts, err := h.db.ListScripts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list scripts: %s", err))
		return
	}

	// Ensure we return empty array instead of null
	if scripts == nil {
		scripts = []storage.Script{}
	}

	writeJSON(w, http.StatusOK, ListStoredScriptsResponse{Scripts: scripts})
}

// RegisterScript godoc
// @Summary Register script
// @Description Register or replace a script; it is persisted when storage is enabled
// @Tags Scripts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterScriptRequest true "Script"
// @Success 201 {object} RegisterScriptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scripts [post]
func (h *Handler) RegisterScript(w http.ResponseWriter, r *http.Request) {
	var req RegisterScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err))
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "name and content are required")
		return
	}

	stored := false
	if h.db != nil {
		if _, err := h.db.UpsertScript(req.Name, req.Description, req.Content, true, false, req.Metadata); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store script: %s", err))
			return
		}
		stored = true
	}

	h.engine.RegisterOne(req.Name, req.Content)
	slog.Info("Script registered via API", "name", req.Name, "stored", stored)

	writeJSON(w, http.StatusCreated, RegisterScriptResponse{
		Name:   req.Name,
		Digest: script.Digest(req.Content),
		Stored: stored,
	})
}

// ExecuteScript godoc
// @Summary Execute script
// @Description Execute a registered script, loading it into Redis if needed
// @Tags Scripts
// @Accept json
// @Produce json
// @Param name path string true "Script name"
// @Param request body ExecuteRequest false "KEYS and ARGV"
// @Success 200 {object} ExecuteResponse
// @Failure 404 {object} ErrorResponse "Script not registered"
// @Failure 502 {object} ErrorResponse "Redis error"
// @Router /scripts/{name}/exec [post]
func (h *Handler) ExecuteScript(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.engine.Execute)
}

// EvalSha godoc
// @Summary Execute script by cached digest
// @Description Execute a script by its cached digest only, without load or NOSCRIPT recovery
// @Tags Scripts
// @Accept json
// @Produce json
// @Param name path string true "Script name"
// @Param request body ExecuteRequest false "KEYS and ARGV"
// @Success 200 {object} ExecuteResponse
// @Failure 404 {object} ErrorResponse "No cached digest"
// @Failure 502 {object} ErrorResponse "Redis error"
// @Router /scripts/{name}/evalsha [post]
func (h *Handler) EvalSha(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.engine.ExecuteByDigest)
}

type executeFunc func(ctx context.Context, name string, keys []string, args []any) (any, error)

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, run executeFunc) {
	name := r.PathValue("name")

	var req ExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %s", err))
			return
		}
	}

	result, err := run(r.Context(), name, req.Keys, req.Args)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, script.ErrUnknownScript) || errors.Is(err, script.ErrUnknownDigest) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{Name: name, Result: result})
}

// InvalidateCache godoc
// @Summary Invalidate digest cache
// @Description Drop every cached digest; scripts are reloaded on next use
// @Tags Cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} InvalidateResponse
// @Failure 401 {object} ErrorResponse
// @Router /cache/invalidate [post]
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InvalidateResponse{Invalidated: h.engine.InvalidateCache()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
