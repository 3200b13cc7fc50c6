package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/services"
	"github.com/menycars/copiloto/internal/utils"
)

type LeadHandler struct {
	leads services.LeadService
	tasks postgresrepo.TaskRepo
}

func NewLeadHandler(leads services.LeadService, tasks postgresrepo.TaskRepo) *LeadHandler {
	return &LeadHandler{leads: leads, tasks: tasks}
}

func (h *LeadHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	lead, err := h.leads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Tasks(c *gin.Context) {
	const op = "LeadHandler.Tasks"

	if _, ok := requireUserID(c); !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.tasks.ListByLead(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to list tasks", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": rows})
}
