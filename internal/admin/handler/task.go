package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chang-tasks/chang-go/internal/admin/usecase"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	uc     *usecase.TaskUsecase
	logger *slog.Logger
}

func NewTaskHandler(uc *usecase.TaskUsecase, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{uc: uc, logger: logger.With("component", "task_handler")}
}

// POST /tasks
func (h *TaskHandler) Insert(c *gin.Context) {
	var req usecase.InsertInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.uc.Insert(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	t, err := h.uc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
			return
		}
		h.logger.Error("get task", "task_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /tasks?queue=&state=&limit=
func (h *TaskHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var states []task.State
	if s := c.Query("state"); s != "" {
		states = []task.State{task.State(s)}
	}

	tasks, err := h.uc.List(c.Request.Context(), usecase.ListInput{
		Queue:  c.Query("queue"),
		States: states,
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// POST /tasks/:id/cancel
func (h *TaskHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if err := h.uc.Cancel(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
		case errors.Is(err, store.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": errInvalidTransition})
		default:
			h.logger.Error("cancel task", "task_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}
	c.Status(http.StatusNoContent)
}
