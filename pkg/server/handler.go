package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/storage"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	mcpHandler := NewMCPHandler(h.Service)
	r.Any("/mcp", gin.WrapH(mcpHandler))

	api := r.Group("/api")
	{
		api.POST("/research", h.createJob)
		api.GET("/research", h.listJobs)
		api.GET("/research/:id", h.getJob)
		api.GET("/research/:id/logs", h.getJobLogs)
		api.GET("/research/:id/findings", h.getJobFindings)

		api.GET("/artifacts/:name", h.getArtifact)
		api.POST("/findings/search", h.searchFindings)
	}
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, research.ErrInvalidInput), errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, ErrJobNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, archive.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "50"), 10, 64)
	jobs, err := h.Service.ListJobs(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		abort(c, err)
		return
	}
	// Return empty list instead of null
	if jobs == nil {
		jobs = []Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) getJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	job, err := h.Service.GetJob(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	logs, err := h.Service.GetJobLogs(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) getJobFindings(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	hits, err := h.Service.JobFindings(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, hits)
}

func (h *Handler) getArtifact(c *gin.Context) {
	content, err := h.Service.ReadArtifact(c.Request.Context(), c.Param("name"))
	if err != nil {
		abort(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(c.Param("name")))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

type searchRequest struct {
	Query  string         `json:"query" binding:"required"`
	TopK   int            `json:"top_k"`
	Filter map[string]any `json:"filter"`
}

func (h *Handler) searchFindings(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hits, err := h.Service.SearchFindings(c.Request.Context(), req.Query, req.TopK, req.Filter)
	if err != nil {
		abort(c, err)
		return
	}
	if hits == nil {
		hits = []archive.Hit{}
	}
	c.JSON(http.StatusOK, hits)
}
