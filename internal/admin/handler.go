package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/errors"
	"eventide/pkg/models"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", h.ListWorkflows)
			workflows.POST("", h.CreateWorkflow)
			workflows.GET("/:id", h.GetWorkflow)
			workflows.PUT("/:id", h.UpdateWorkflow)
			workflows.DELETE("/:id", h.DeleteWorkflow)
		}

		v1.POST("/events", h.SubmitEvent)
		v1.GET("/diagnostics/dedup-cache-size", h.DedupCacheSize)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)
	c.JSON(status, response)
}

// ListWorkflows godoc
// @Summary      List all workflows
// @Tags         workflows
// @Produce      json
// @Success      200  {array}   workflow.Workflow
// @Router       /workflows [get]
func (h *Handler) ListWorkflows(c *gin.Context) {
	workflows, err := h.service.ListWorkflows(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow godoc
// @Summary      Create a workflow
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        workflow  body      workflow.CreateWorkflowRequest  true  "Workflow definition"
// @Success      201       {object}  workflow.Workflow
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Router       /workflows [post]
func (h *Handler) CreateWorkflow(c *gin.Context) {
	var req workflow.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	wf, err := h.service.CreateWorkflow(c.Request.Context(), req, changedBy(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wf)
}

// GetWorkflow godoc
// @Summary      Get a workflow by ID
// @Tags         workflows
// @Produce      json
// @Param        id   path      string  true  "Workflow ID"
// @Success      200  {object}  workflow.Workflow
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /workflows/{id} [get]
func (h *Handler) GetWorkflow(c *gin.Context) {
	wf, err := h.service.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

// UpdateWorkflow godoc
// @Summary      Update a workflow
// @Tags         workflows
// @Accept       json
// @Produce      json
// @Param        id        path      string                          true  "Workflow ID"
// @Param        workflow  body      workflow.UpdateWorkflowRequest  true  "Updated fields"
// @Success      200       {object}  workflow.Workflow
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /workflows/{id} [put]
func (h *Handler) UpdateWorkflow(c *gin.Context) {
	var req workflow.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	wf, err := h.service.UpdateWorkflow(c.Request.Context(), c.Param("id"), req, changedBy(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow godoc
// @Summary      Delete a workflow
// @Tags         workflows
// @Param        id   path  string  true  "Workflow ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /workflows/{id} [delete]
func (h *Handler) DeleteWorkflow(c *gin.Context) {
	if err := h.service.DeleteWorkflow(c.Request.Context(), c.Param("id"), changedBy(c)); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitEvent godoc
// @Summary      Submit an event synchronously
// @Description  Runs an event through the choreography engine directly, bypassing the bus
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        event  body  models.IncomingEvent  true  "Event"
// @Success      202
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /events [post]
func (h *Handler) SubmitEvent(c *gin.Context) {
	var event models.IncomingEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.service.SubmitEvent(c.Request.Context(), event); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// DedupCacheSize godoc
// @Summary      Count dedup keys tracked in the KV store
// @Tags         diagnostics
// @Produce      json
// @Param        prefix  query     string  false  "Key prefix to scan (defaults to the dedup prefix)"
// @Success      200     {object}  map[string]int
// @Router       /diagnostics/dedup-cache-size [get]
func (h *Handler) DedupCacheSize(c *gin.Context) {
	size, err := h.service.DedupCacheSize(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"size": size})
}

func changedBy(c *gin.Context) string {
	if v := c.GetHeader("X-Actor"); v != "" {
		return v
	}
	return "unknown"
}
