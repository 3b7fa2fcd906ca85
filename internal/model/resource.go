package model

import "time"

// Resource прибор лаборатории, который можно забронировать
type Resource struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Lab           string    `json:"lab"`
	IsBookable    bool      `json:"is_bookable"`    // Прибор исправен и доступен
	AllowQueueing bool      `json:"allow_queueing"` // Пускать конфликтующие заявки в очередь
	CreatedAt     time.Time `json:"created_at"`
}
