package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"modstacker/collection"
	"modstacker/compat"
)

// minQueryLen is the shortest search query forwarded to the registry.
const minQueryLen = 2

// Registry is the part of the Modrinth client the API proxies.
type Registry interface {
	SearchMods(ctx context.Context, query string) ([]collection.SearchResult, error)
	FetchProjectMetadata(ctx context.Context, slug string) (collection.SideMetadata, error)
	FetchVersionSupport(ctx context.Context, slug string, versions []string) (map[string]bool, error)
}

type Handler struct {
	store    *collection.Store
	checker  *compat.Checker
	registry Registry
	remoteMu sync.Locker
	baseCtx  context.Context
	log      *zap.SugaredLogger
}

type HandlerConfig struct {
	Store    *collection.Store
	Checker  *compat.Checker
	Registry Registry
	// RemoteLock serialises every proxied registry call with checker traffic.
	RemoteLock sync.Locker
	// Context bounds background check-all runs.
	Context context.Context
	Log     *zap.SugaredLogger
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		store:    cfg.Store,
		checker:  cfg.Checker,
		registry: cfg.Registry,
		remoteMu: cfg.RemoteLock,
		baseCtx:  cfg.Context,
		log:      cfg.Log,
	}
	if h.remoteMu == nil {
		h.remoteMu = &sync.Mutex{}
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	return h
}

// GET /healthcheck
func (h *Handler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/data
func (h *Handler) GetData(c *gin.Context) {
	RespondOK(c, h.store.Snapshot())
}

// POST /api/save
func (h *Handler) SaveData(c *gin.Context) {
	var body collection.Collection
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := body.Validate(); err != nil {
		respondErr(c, err)
		return
	}
	h.store.Replace(body)
	if err := h.store.Save(c.Request.Context()); err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/search?q=
func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if len([]rune(q)) < minQueryLen {
		RespondOK(c, []collection.SearchResult{})
		return
	}
	h.remoteMu.Lock()
	results, err := h.registry.SearchMods(c.Request.Context(), q)
	h.remoteMu.Unlock()
	if err != nil {
		h.log.Warnw("Search failed", zap.String("query", q), zap.Error(err))
		RespondOK(c, []collection.SearchResult{})
		return
	}
	RespondOK(c, results)
}

// GET /api/project/:slug
func (h *Handler) ProjectMetadata(c *gin.Context) {
	h.remoteMu.Lock()
	meta, err := h.registry.FetchProjectMetadata(c.Request.Context(), c.Param("slug"))
	h.remoteMu.Unlock()
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, meta)
}

type checkVersionRequest struct {
	Slug     string   `json:"slug"`
	Versions []string `json:"versions"`
}

// POST /api/check_version
func (h *Handler) CheckVersion(c *gin.Context) {
	var req checkVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Slug == "" || len(req.Versions) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_params", errors.New("slug and versions are required"))
		return
	}

	h.remoteMu.Lock()
	result, err := h.registry.FetchVersionSupport(c.Request.Context(), req.Slug, req.Versions)
	h.remoteMu.Unlock()
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/versions
func (h *Handler) AddVersion(c *gin.Context) {
	var req struct {
		Version string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.store.AddVersion(c.Request.Context(), req.Version); err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"targetVersions": h.store.Versions()})
}

// DELETE /api/versions/:index
func (h *Handler) RemoveVersion(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	removed, err := h.store.RemoveVersion(c.Request.Context(), idx)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"removed": removed, "targetVersions": h.store.Versions()})
}

// POST /api/categories
func (h *Handler) AddCategory(c *gin.Context) {
	idx, err := h.store.AddCategory(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"index": idx, "name": collection.DefaultCategoryName})
}

type updateCategoryRequest struct {
	Name       *string `json:"name"`
	ShowExport *bool   `json:"showExport"`
}

// PATCH /api/categories/:index
func (h *Handler) UpdateCategory(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Name == nil && req.ShowExport == nil {
		RespondError(c, http.StatusBadRequest, "missing_params", errors.New("name or showExport is required"))
		return
	}

	ctx := c.Request.Context()
	if req.Name != nil {
		if err := h.store.RenameCategory(ctx, idx, strings.TrimSpace(*req.Name)); err != nil {
			respondErr(c, err)
			return
		}
	}
	if req.ShowExport != nil {
		if err := h.store.SetShowExport(ctx, idx, *req.ShowExport); err != nil {
			respondErr(c, err)
			return
		}
	}
	cats := h.store.Snapshot().Categories
	if idx >= len(cats) {
		RespondOK(c, gin.H{"status": "ok"})
		return
	}
	RespondOK(c, cats[idx])
}

// DELETE /api/categories/:index[?confirm=true]
// A non-empty category needs confirm=true; otherwise 409 with the mod count.
func (h *Handler) DeleteCategory(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	count, err := h.store.ModCount(idx)
	if err != nil {
		respondErr(c, err)
		return
	}
	if count > 0 && c.Query("confirm") != "true" {
		c.JSON(http.StatusConflict, ErrorEnvelope{Error: APIError{
			Message: fmt.Sprintf("category has %d mods, repeat with confirm=true", count),
			Code:    "confirm_required",
			Count:   &count,
		}})
		return
	}
	if err := h.store.DeleteCategory(c.Request.Context(), idx); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/categories/:index/mods
// The background compatibility check starts through the store's add hook.
func (h *Handler) AddMod(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	var req collection.SearchResult
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.store.AddMod(c.Request.Context(), req, idx); err != nil {
		respondErr(c, err)
		return
	}
	mod, _, _ := h.store.FindMod(req.Slug)
	c.JSON(http.StatusCreated, mod)
}

// DELETE /api/categories/:index/mods/:slug
func (h *Handler) RemoveMod(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.store.RemoveMod(c.Request.Context(), idx, c.Param("slug")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/categories/:index/export
func (h *Handler) ExportLinks(c *gin.Context) {
	idx, ok := indexParam(c)
	if !ok {
		return
	}
	links, err := h.store.ExportLinks(idx)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"links": links, "text": strings.Join(links, "\n")})
}

type moveModRequest struct {
	Slug string `json:"slug"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// POST /api/mods/move
func (h *Handler) MoveMod(c *gin.Context) {
	var req moveModRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.store.MoveMod(c.Request.Context(), req.Slug, req.From, req.To); err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

type checkResult struct {
	Slug     string          `json:"slug"`
	Versions map[string]bool `json:"versions"`
	Cached   bool            `json:"cached"`
	Error    string          `json:"error,omitempty"`
}

func toCheckResult(r compat.Result) checkResult {
	out := checkResult{Slug: r.Slug, Versions: r.Versions, Cached: r.Cached}
	if out.Versions == nil {
		out.Versions = map[string]bool{}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// POST /api/mods/:slug/check
func (h *Handler) CheckMod(c *gin.Context) {
	res, err := h.checker.CheckMod(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, toCheckResult(res))
}

// POST /api/check_all
func (h *Handler) StartCheckAll(c *gin.Context) {
	if _, err := h.checker.Start(h.baseCtx, nil); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "total": h.store.TotalMods()})
}

type reportSummary struct {
	Total     int           `json:"total"`
	Failed    int           `json:"failed"`
	CacheHits int           `json:"cache_hits"`
	Cancelled bool          `json:"cancelled"`
	Results   []checkResult `json:"results"`
}

// GET /api/check_all/progress
func (h *Handler) CheckAllProgress(c *gin.Context) {
	p := h.checker.Progress()
	body := gin.H{
		"running": h.checker.Running(),
		"current": p.Current,
		"total":   p.Total,
		"slug":    p.Slug,
		"label":   p.String(),
	}
	if report, ok := h.checker.LastReport(); ok {
		summary := reportSummary{
			Total:     report.Total,
			Failed:    len(report.Failed()),
			CacheHits: report.CacheHits(),
			Cancelled: report.Err != nil,
			Results:   make([]checkResult, 0, len(report.Results)),
		}
		for _, r := range report.Results {
			summary.Results = append(summary.Results, toCheckResult(r))
		}
		body["last"] = summary
	}
	RespondOK(c, body)
}

func indexParam(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_index", err)
		return 0, false
	}
	return idx, true
}
