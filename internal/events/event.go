package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/models"
)

// Type определяет тип доменного события
type Type string

const (
	TypeTradeProposed  Type = "trade_proposed"
	TypeTradeAccepted  Type = "trade_accepted"
	TypeTradeRejected  Type = "trade_rejected"
	TypeTradeCancelled Type = "trade_cancelled"
	TypeNewMessage     Type = "new_message"
)

// Event представляет доменное событие жизненного цикла обмена.
// События носят уведомительный характер: их доставка не влияет
// на корректность состояния обменов.
type Event struct {
	Type        Type               `json:"type"`
	TradeID     uuid.UUID          `json:"trade_id"`
	OldStatus   models.TradeStatus `json:"old_status,omitempty"`
	NewStatus   models.TradeStatus `json:"new_status,omitempty"`
	RequesterID uuid.UUID          `json:"requester_id"`
	ResponderID uuid.UUID          `json:"responder_id"`
	ActorID     uuid.UUID          `json:"actor_id,omitempty"`
	MessageID   uuid.UUID          `json:"message_id,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// TransitionType сопоставляет конечный статус обмена типу события
func TransitionType(next models.TradeStatus) Type {
	switch next {
	case models.TradeAccepted:
		return TypeTradeAccepted
	case models.TradeRejected:
		return TypeTradeRejected
	case models.TradeCancelled:
		return TypeTradeCancelled
	}
	return TypeTradeProposed
}

// Recipients возвращает участников обмена, которых нужно уведомить.
// Инициатора события не уведомляем о его собственном действии.
func (e Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	for _, id := range []uuid.UUID{e.RequesterID, e.ResponderID} {
		if id != e.ActorID {
			out = append(out, id)
		}
	}
	return out
}
