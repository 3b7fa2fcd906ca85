package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/lab_reservations/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reserveUsage = "Формат: /reserve <прибор> <ДД.ММ.ГГГГ> <ЧЧ:ММ-ЧЧ:ММ> [заметка]\n" +
	"Например: /reserve 3 20.10.2026 09:00-10:30 калибровка"

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	user := update.Message.From

	// Регистрируем пользователя
	registeredUser, err := h.userService.RegisterUser(
		ctx,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	)

	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Это бот бронирования лабораторных приборов.\n\n"+
			"/reserve - Забронировать прибор\n"+
			"/mybookings - Мои брони\n"+
			"/cancel - Отменить бронь\n"+
			"/queue - Очередь на прибор\n"+
			"/help - Справка",
		registeredUser.FirstName,
	)

	h.sendMessage(ctx, b, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/reserve <прибор> <дата> <время> [заметка] - Забронировать прибор\n" +
		"/mybookings - Мои брони\n" +
		"/cancel <id> - Отменить бронь\n" +
		"/queue <прибор> - Очередь на прибор\n\n" +
		"Для заведующих:\n" +
		"/approve <id> - Подтвердить бронь\n" +
		"/reject <id> - Отклонить бронь\n\n" +
		"Если время занято и очередь разрешена, заявка встанет в очередь " +
		"и продвинется автоматически, когда слот освободится."

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleReserve обрабатывает команду /reserve
func (h *Handlers) HandleReserve(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	args, err := parseReserveArgs(update.Message.Text, h.location)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Не удалось разобрать команду.\n\n"+reserveUsage)
		return
	}

	res, err := h.reservationService.RequestReservation(ctx, service.RequestInput{
		ResourceID:  args.ResourceID,
		RequesterID: user.ID,
		StartTime:   args.Start,
		EndTime:     args.End,
		Notes:       args.Notes,
	})
	if err != nil {
		h.logger.Info("Reservation request failed",
			zap.Int64("user_id", user.ID),
			zap.Int64("resource_id", args.ResourceID),
			zap.Error(err),
		)
		h.sendError(ctx, b, chatID, describeError(err))
		return
	}

	h.sendMessage(ctx, b, chatID, admissionText(res, h.location))
}

// HandleApprove обрабатывает команду /approve
func (h *Handlers) HandleApprove(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireManager(ctx, b, update)
	if !ok {
		return
	}
	h.applyTransition(ctx, b, update, "/approve <id>", "✅ Бронь подтверждена.",
		func(ctx context.Context, id uuid.UUID) error {
			return h.reservationService.ApproveReservation(ctx, id, user.ID)
		})
}

// HandleReject обрабатывает команду /reject
func (h *Handlers) HandleReject(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireManager(ctx, b, update)
	if !ok {
		return
	}
	h.applyTransition(ctx, b, update, "/reject <id>", "🚫 Бронь отклонена.",
		func(ctx context.Context, id uuid.UUID) error {
			return h.reservationService.RejectReservation(ctx, id, user.ID)
		})
}

// HandleCancel обрабатывает команду /cancel
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	h.applyTransition(ctx, b, update, "/cancel <id>", "❌ Бронь отменена.",
		func(ctx context.Context, id uuid.UUID) error {
			return h.reservationService.CancelReservation(ctx, id, user.ID)
		})
}

// applyTransition общий код для /approve, /reject и /cancel
func (h *Handlers) applyTransition(
	ctx context.Context,
	b *bot.Bot,
	update *models.Update,
	usage, success string,
	do func(ctx context.Context, id uuid.UUID) error,
) {
	chatID := update.Message.Chat.ID

	id, err := parseReservationArg(update.Message.Text)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Некорректный ID брони.\n\nФормат: "+usage)
		return
	}

	if err := do(ctx, id); err != nil {
		h.logger.Info("Reservation transition failed",
			zap.String("reservation_id", id.String()),
			zap.Error(err),
		)
		h.sendError(ctx, b, chatID, describeError(err))
		return
	}

	h.sendMessage(ctx, b, chatID, success)
}

// HandleMyBookings обрабатывает команду /mybookings
func (h *Handlers) HandleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	reservations, err := h.reservationService.ListByRequester(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list reservations", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, describeError(err))
		return
	}

	if len(reservations) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 У вас пока нет броней.\n\n"+reserveUsage)
		return
	}

	parts := make([]string, 0, len(reservations))
	for _, res := range reservations {
		parts = append(parts, FormatReservation(res, h.location))
	}
	h.sendMessage(ctx, b, chatID, "📅 Ваши брони:\n\n"+strings.Join(parts, "\n\n"))
}

// HandleQueue обрабатывает команду /queue
func (h *Handlers) HandleQueue(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireUser(ctx, b, update); !ok {
		return
	}
	chatID := update.Message.Chat.ID

	resourceID, err := parseResourceArg(update.Message.Text)
	if err != nil {
		h.sendError(ctx, b, chatID, "Формат: /queue <прибор>")
		return
	}

	waitlist, err := h.reservationService.ListWaitlist(ctx, resourceID)
	if err != nil {
		h.logger.Error("Failed to list waitlist", zap.Int64("resource_id", resourceID), zap.Error(err))
		h.sendError(ctx, b, chatID, describeError(err))
		return
	}

	if len(waitlist) == 0 {
		h.sendMessage(ctx, b, chatID, fmt.Sprintf("🟢 Очередь на прибор #%d пуста.", resourceID))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕒 Очередь на прибор #%d:\n", resourceID)
	for i, res := range waitlist {
		fmt.Fprintf(&sb, "\n%d. %s %s-%s",
			i+1,
			res.StartTime.In(h.location).Format("02.01.2006"),
			res.StartTime.In(h.location).Format("15:04"),
			res.EndTime.In(h.location).Format("15:04"),
		)
	}
	h.sendMessage(ctx, b, chatID, sb.String())
}
