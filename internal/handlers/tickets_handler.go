package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/identity"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/validation"
)

// HandlerConfig groups dependencies for the ticket routes.
type HandlerConfig struct {
	Service  *tickets.Service
	Resolver identity.Resolver
}

type ticketsHandler struct {
	svc *tickets.Service
	v   *validatorv10.Validate
}

// RegisterTicketRoutes registers the user and agent ticket routes. Every
// route requires an authenticated caller; /agent routes also require the
// agent role.
func RegisterTicketRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &ticketsHandler{svc: cfg.Service, v: validation.New()}

	users := r.Group("/", identity.Authenticate(cfg.Resolver), identity.RequireRole(identity.RoleUser))
	users.POST("/tickets", h.create)
	users.GET("/tickets", h.listMine)
	users.GET("/tickets/:ticketId", h.get)

	agents := users.Group("/agent", identity.RequireRole(identity.RoleAgent))
	agents.GET("/tickets", h.listByStatus)
	agents.PATCH("/tickets/:ticketId", h.transition)
}

func (h *ticketsHandler) create(c *gin.Context) {
	caller, _ := identity.FromContext(c)

	var req validation.CreateTicketRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.svc.CreateTicket(c.Request.Context(), caller.SubjectID, req.Title, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Location", fmt.Sprintf("/tickets/%s", res.TicketID))
	c.JSON(http.StatusCreated, res)
}

func (h *ticketsHandler) listMine(c *gin.Context) {
	caller, _ := identity.FromContext(c)

	list, err := h.svc.ListOwnerTickets(c.Request.Context(), caller.SubjectID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list})
}

func (h *ticketsHandler) get(c *gin.Context) {
	caller, _ := identity.FromContext(c)

	t, err := h.svc.GetTicket(c.Request.Context(), c.Param("ticketId"), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ticketsHandler) listByStatus(c *gin.Context) {
	var q validation.ListByStatusQuery
	if err := validation.BindQueryAndValidate(c, &q, h.v); err != nil {
		_ = c.Error(err)
		return
	}

	list, err := h.svc.ListTicketsByStatus(c.Request.Context(), q.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list})
}

func (h *ticketsHandler) transition(c *gin.Context) {
	var req validation.TransitionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.svc.TransitionStatus(c.Request.Context(), c.Param("ticketId"), req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
