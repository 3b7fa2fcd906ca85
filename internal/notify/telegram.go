package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/Freeeeeet/lab_reservations/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender часть API бота, нужная для уведомлений. *bot.Bot подходит.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup поиск пользователя для получения chat id
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// TelegramNotifier доставляет уведомления в личку Telegram
type TelegramNotifier struct {
	sender MessageSender
	users  UserLookup
}

func NewTelegramNotifier(sender MessageSender, users UserLookup) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, users: users}
}

// EmitNotification отправляет уведомление пользователю
func (n *TelegramNotifier) EmitNotification(ctx context.Context, msg service.Notification) error {
	user, err := n.users.GetByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user == nil || user.TelegramID == 0 {
		return fmt.Errorf("recipient %d has no telegram chat", msg.UserID)
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    user.TelegramID,
		Text:      formatNotification(msg),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

func formatNotification(msg service.Notification) string {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(msg.Title), html.EscapeString(msg.Message))
	if msg.LinkRef != "" {
		text += fmt.Sprintf("\n\n<code>%s</code>", html.EscapeString(msg.LinkRef))
	}
	return text
}
