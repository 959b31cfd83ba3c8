package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification представляет сохранённое уведомление пользователя.
// Записывается для каждого получателя доменного события, чтобы оффлайн
// пользователь увидел его при следующем входе.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	TradeID   uuid.UUID `json:"trade_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationResponse представляет структуру ответа API со списком уведомлений
type NotificationResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
