package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	LanguageCode string    `json:"language_code"`
	IsLabManager bool      `json:"is_lab_manager"` // Может одобрять и отклонять брони
	CreatedAt    time.Time `json:"created_at"`
}

// CanManage возвращает true для привилегированных пользователей
func (u *User) CanManage() bool {
	return u != nil && u.IsLabManager
}
