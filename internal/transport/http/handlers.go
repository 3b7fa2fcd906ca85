package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/Freeeeeet/lab_reservations/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	api    ReservationAPI
	logger *zap.Logger
}

func NewHandler(api ReservationAPI, logger *zap.Logger) *Handler {
	return &Handler{api: api, logger: logger}
}

type requestReservationBody struct {
	ResourceID  int64     `json:"resource_id" binding:"required"`
	RequesterID int64     `json:"requester_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Notes       string    `json:"notes"`
}

type transitionBody struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

type reservationResponse struct {
	ID          uuid.UUID               `json:"id"`
	ResourceID  int64                   `json:"resource_id"`
	RequesterID int64                   `json:"requester_id"`
	StartTime   time.Time               `json:"start_time"`
	EndTime     time.Time               `json:"end_time"`
	Status      model.ReservationStatus `json:"status"`
	Notes       string                  `json:"notes,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	Position    int                     `json:"position,omitempty"`
}

func toResponse(res *model.Reservation) reservationResponse {
	return reservationResponse{
		ID:          res.ID,
		ResourceID:  res.ResourceID,
		RequesterID: res.RequesterID,
		StartTime:   res.StartTime,
		EndTime:     res.EndTime,
		Status:      res.Status,
		Notes:       res.Notes,
		CreatedAt:   res.CreatedAt,
	}
}

// RequestReservation POST /v1/reservations
func (h *Handler) RequestReservation(c *gin.Context) {
	var req requestReservationBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	res, err := h.api.RequestReservation(c.Request.Context(), service.RequestInput{
		ResourceID:  req.ResourceID,
		RequesterID: req.RequesterID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(res))
}

// GetReservation GET /v1/reservations/:id
func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	res, err := h.api.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(res))
}

// ApproveReservation POST /v1/reservations/:id/approve
func (h *Handler) ApproveReservation(c *gin.Context) {
	h.transition(c, h.api.ApproveReservation)
}

// RejectReservation POST /v1/reservations/:id/reject
func (h *Handler) RejectReservation(c *gin.Context) {
	h.transition(c, h.api.RejectReservation)
}

// CancelReservation POST /v1/reservations/:id/cancel
func (h *Handler) CancelReservation(c *gin.Context) {
	h.transition(c, h.api.CancelReservation)
}

func (h *Handler) transition(c *gin.Context, do func(ctx context.Context, id uuid.UUID, actorID int64) error) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	var req transitionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := do(c.Request.Context(), id, req.ActorID); err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.api.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// ListWaitlist GET /v1/resources/:id/waitlist
func (h *Handler) ListWaitlist(c *gin.Context) {
	resourceID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	waitlist, err := h.api.ListWaitlist(c.Request.Context(), resourceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]reservationResponse, 0, len(waitlist))
	for i, res := range waitlist {
		r := toResponse(res)
		r.Position = i + 1
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"resource_id": resourceID, "waitlist": out})
}

// ListByRequester GET /v1/users/:id/reservations
func (h *Handler) ListByRequester(c *gin.Context) {
	userID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	reservations, err := h.api.ListByRequester(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]reservationResponse, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, toResponse(res))
	}
	c.JSON(http.StatusOK, gin.H{"reservations": out})
}

func reservationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation id"})
		return uuid.Nil, false
	}
	return id, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}

// writeError переводит ошибки движка в HTTP-статусы
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrResourceNotFound),
		errors.Is(err, model.ErrReservationNotFound),
		errors.Is(err, model.ErrActorNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrConflictRefused),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, model.ErrResourceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
