package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/google/uuid"
)

// ReservationStatusDisplay содержит emoji и текст для отображения статуса
type ReservationStatusDisplay struct {
	Emoji string
	Text  string
}

// GetReservationStatusDisplay возвращает emoji и текст для статуса брони
func GetReservationStatusDisplay(status model.ReservationStatus) ReservationStatusDisplay {
	displays := map[model.ReservationStatus]ReservationStatusDisplay{
		model.ReservationStatusPending:    {"⏳", "Ожидает одобрения"},
		model.ReservationStatusConfirmed:  {"✅", "Подтверждена"},
		model.ReservationStatusWaitlisted: {"🕒", "В очереди"},
		model.ReservationStatusCancelled:  {"❌", "Отменена"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return ReservationStatusDisplay{"❓", "Неизвестно"}
}

// FormatReservation форматирует бронь для отображения
func FormatReservation(res *model.Reservation, loc *time.Location) string {
	display := GetReservationStatusDisplay(res.Status)

	text := fmt.Sprintf(
		"%s Прибор #%d\n"+
			"🗓 %s %s-%s\n"+
			"📊 Статус: %s\n"+
			"🆔 %s",
		display.Emoji,
		res.ResourceID,
		res.StartTime.In(loc).Format("02.01.2006"),
		res.StartTime.In(loc).Format("15:04"),
		res.EndTime.In(loc).Format("15:04"),
		display.Text,
		res.ID,
	)
	if res.Notes != "" {
		text += "\n📝 " + res.Notes
	}
	return text
}

// reserveArgs аргументы команды /reserve
type reserveArgs struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
	Notes      string
}

// parseReserveArgs разбирает "/reserve <прибор> <ДД.ММ.ГГГГ> <ЧЧ:ММ-ЧЧ:ММ> [заметка]".
// Интервал через полночь задаётся как конец раньше начала и переносится на следующий день.
func parseReserveArgs(text string, loc *time.Location) (reserveArgs, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return reserveArgs{}, errors.New("usage")
	}

	resourceID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || resourceID <= 0 {
		return reserveArgs{}, fmt.Errorf("invalid resource id %q", fields[1])
	}

	day, err := time.ParseInLocation("02.01.2006", fields[2], loc)
	if err != nil {
		return reserveArgs{}, fmt.Errorf("invalid date %q", fields[2])
	}

	bounds := strings.SplitN(fields[3], "-", 2)
	if len(bounds) != 2 {
		return reserveArgs{}, fmt.Errorf("invalid time range %q", fields[3])
	}
	start, err := atClock(day, bounds[0], loc)
	if err != nil {
		return reserveArgs{}, err
	}
	end, err := atClock(day, bounds[1], loc)
	if err != nil {
		return reserveArgs{}, err
	}
	if end.Equal(start) {
		return reserveArgs{}, fmt.Errorf("empty time range %q", fields[3])
	}
	// Конец раньше начала: бронь через полночь
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}

	return reserveArgs{
		ResourceID: resourceID,
		Start:      start,
		End:        end,
		Notes:      strings.Join(fields[4:], " "),
	}, nil
}

func atClock(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// parseReservationArg достаёт ID брони из "/command <uuid>"
func parseReservationArg(text string) (uuid.UUID, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return uuid.Nil, errors.New("usage")
	}
	return uuid.Parse(fields[1])
}

// parseResourceArg достаёт ID прибора из "/command <id>"
func parseResourceArg(text string) (int64, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, errors.New("usage")
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid resource id %q", fields[1])
	}
	return id, nil
}

// describeError переводит ошибку движка в сообщение пользователю
func describeError(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "❌ Некорректный запрос: проверьте прибор и время."
	case errors.Is(err, model.ErrResourceNotFound):
		return "❌ Прибор не найден."
	case errors.Is(err, model.ErrResourceUnavailable):
		return "🔧 Прибор сейчас недоступен для бронирования."
	case errors.Is(err, model.ErrConflictRefused):
		return "⛔️ Это время уже занято, очередь на прибор не ведётся."
	case errors.Is(err, model.ErrReservationNotFound):
		return "❌ Бронь не найдена."
	case errors.Is(err, model.ErrUnauthorized):
		return "❌ Недостаточно прав для этого действия."
	case errors.Is(err, model.ErrInvalidTransition):
		return "❌ Это действие недоступно для брони в текущем статусе."
	case errors.Is(err, model.ErrStaleState):
		return "🔄 Бронь только что изменилась. Обновите список и попробуйте снова."
	case errors.Is(err, model.ErrTemporarilyUnavailable):
		return "⏳ Сервис перегружен. Попробуйте через минуту."
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}

// admissionText текст ответа на успешную заявку
func admissionText(res *model.Reservation, loc *time.Location) string {
	header := "✅ Прибор зарезервирован, ждём подтверждения заведующего."
	if res.Status == model.ReservationStatusWaitlisted {
		header = "🕒 Время занято. Заявка поставлена в очередь, мы сообщим, когда слот освободится."
	}
	return header + "\n\n" + FormatReservation(res, loc)
}
