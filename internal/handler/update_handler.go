package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"projectflow/internal/service"
	"projectflow/internal/workflow"
	"projectflow/pkg/timewindow"
)

type UpdateHandler struct {
	workflowService *service.WorkflowService
	projectService  *service.ProjectService
}

func NewUpdateHandler(workflowService *service.WorkflowService, projectService *service.ProjectService) *UpdateHandler {
	return &UpdateHandler{
		workflowService: workflowService,
		projectService:  projectService,
	}
}

// Submit handles POST /milestones/:id/updates. Omitting date means today.
func (h *UpdateHandler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	var req struct {
		Date      string   `json:"date"`
		WorkDone  string   `json:"work_done" binding:"required"`
		Notes     string   `json:"notes"`
		PhotoRefs []string `json:"photo_refs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	date := time.Now()
	if req.Date != "" {
		var err error
		date, err = timewindow.ParseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
	}

	u, err := h.workflowService.SubmitDailyUpdate(c.Request.Context(), actor, id, workflow.Submission{
		Date:      date,
		WorkDone:  req.WorkDone,
		Notes:     req.Notes,
		PhotoRefs: req.PhotoRefs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

// Approve handles POST /updates/:id/approve
func (h *UpdateHandler) Approve(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := updateID(c)
	if !ok {
		return
	}

	var req struct {
		ApprovedProgress int `json:"approved_progress"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	u, err := h.workflowService.ApproveUpdate(c.Request.Context(), actor, id, req.ApprovedProgress)
	if err != nil {
		writeError(c, err)
		return
	}

	m, _, err := h.workflowService.GetMilestone(c.Request.Context(), u.MilestoneID)
	if err == nil {
		h.projectService.InvalidateProgress(c.Request.Context(), m.ProjectID)
	}
	c.JSON(http.StatusOK, u)
}

// Reject handles POST /updates/:id/reject
func (h *UpdateHandler) Reject(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := updateID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejection reason is required"})
		return
	}

	u, err := h.workflowService.RejectUpdate(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func updateID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update id"})
		return 0, false
	}
	return id, true
}
