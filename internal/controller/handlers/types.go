package handlers

import (
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService        *service.UserService
	reservationService *service.ReservationService
	location           *time.Location
	logger             *zap.Logger
}

// NewHandlers создаёт новый обработчик команд.
// location задаёт часовой пояс, в котором пользователи вводят время.
func NewHandlers(
	userService *service.UserService,
	reservationService *service.ReservationService,
	location *time.Location,
	logger *zap.Logger,
) *Handlers {
	if location == nil {
		location = time.UTC
	}
	return &Handlers{
		userService:        userService,
		reservationService: reservationService,
		location:           location,
		logger:             logger,
	}
}
