package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"projectflow/internal/service"
	"projectflow/internal/workflow"
)

type MilestoneHandler struct {
	workflowService *service.WorkflowService
	projectService  *service.ProjectService
}

func NewMilestoneHandler(workflowService *service.WorkflowService, projectService *service.ProjectService) *MilestoneHandler {
	return &MilestoneHandler{
		workflowService: workflowService,
		projectService:  projectService,
	}
}

// Get handles GET /milestones/:id, returning the milestone with its
// full update ledger.
func (h *MilestoneHandler) Get(c *gin.Context) {
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	m, updates, err := h.workflowService.GetMilestone(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestone":     m,
		"daily_updates": updates,
	})
}

// AdvanceProgress handles POST /milestones/:id/progress. The body carries
// exactly one of delta or progress (absolute).
func (h *MilestoneHandler) AdvanceProgress(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	var req struct {
		Delta    *int `json:"delta"`
		Progress *int `json:"progress"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.workflowService.AdvanceProgress(c.Request.Context(), actor, id, workflow.ProgressChange{
		Delta:    req.Delta,
		Absolute: req.Progress,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.projectService.InvalidateProgress(c.Request.Context(), m.ProjectID)
	c.JSON(http.StatusOK, m)
}

// RequestRelease handles POST /milestones/:id/release
func (h *MilestoneHandler) RequestRelease(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	m, err := h.workflowService.RequestRelease(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// Approve handles POST /milestones/:id/approve
func (h *MilestoneHandler) Approve(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	m, err := h.workflowService.ApproveMilestone(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// Close handles POST /milestones/:id/close
func (h *MilestoneHandler) Close(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	m, err := h.workflowService.CloseMilestone(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	h.projectService.InvalidateProgress(c.Request.Context(), m.ProjectID)
	c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /milestones/:id (soft delete)
func (h *MilestoneHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := milestoneID(c)
	if !ok {
		return
	}

	m, _, err := h.workflowService.GetMilestone(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.workflowService.DeleteMilestone(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}

	h.projectService.InvalidateProgress(c.Request.Context(), m.ProjectID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "milestone_id": id})
}

func milestoneID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone id"})
		return 0, false
	}
	return id, true
}
