package models

import (
	"time"

	"github.com/google/uuid"
)

// Message представляет сообщение в переписке по обмену.
// Лог сообщений только дополняется: редактирования и удаления нет.
type Message struct {
	ID        uuid.UUID `json:"id"`
	TradeID   uuid.UUID `json:"trade_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}
