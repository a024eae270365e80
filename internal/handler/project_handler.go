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

type ProjectHandler struct {
	workflowService *service.WorkflowService
	projectService  *service.ProjectService
}

func NewProjectHandler(workflowService *service.WorkflowService, projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		workflowService: workflowService,
		projectService:  projectService,
	}
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req struct {
		Title     string  `json:"title" binding:"required"`
		StartDate string  `json:"start_date" binding:"required"`
		EndDate   string  `json:"end_date" binding:"required"`
		Budget    float64 `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.workflowService.CreateProject(c.Request.Context(), actor, workflow.ProjectInput{
		Title:     req.Title,
		StartDate: start,
		EndDate:   end,
		Budget:    req.Budget,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	overview, err := h.projectService.Overview(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// Progress handles GET /projects/:id/progress
func (h *ProjectHandler) Progress(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	progress, err := h.projectService.Progress(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project_id": id, "progress": progress})
}

// AddMilestone handles POST /projects/:id/milestones
func (h *ProjectHandler) AddMilestone(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		StartDate   string  `json:"start_date" binding:"required"`
		EndDate     string  `json:"end_date" binding:"required"`
		DueDate     string  `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var due time.Time
	if req.DueDate != "" {
		due, err = timewindow.ParseDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
			return
		}
	}

	m, err := h.workflowService.AddMilestone(c.Request.Context(), actor, projectID, workflow.MilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		StartDate:   start,
		EndDate:     end,
		DueDate:     due,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.projectService.InvalidateProgress(c.Request.Context(), projectID)
	c.JSON(http.StatusCreated, m)
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := timewindow.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := timewindow.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
