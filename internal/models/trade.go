package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeStatus представляет статус предложения обмена
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeCancelled TradeStatus = "cancelled"
)

// ParseTradeStatus преобразует строку в TradeStatus
func ParseTradeStatus(s string) (TradeStatus, bool) {
	switch TradeStatus(s) {
	case TradePending, TradeAccepted, TradeRejected, TradeCancelled:
		return TradeStatus(s), true
	}
	return "", false
}

// IsTerminal сообщает, является ли статус конечным.
// Из конечного статуса переходов нет.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeAccepted || s == TradeRejected || s == TradeCancelled
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Единственные допустимые переходы: pending -> accepted|rejected|cancelled.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	return s == TradePending && next.IsTerminal()
}

// Trade представляет предложение об обмене: вещь инициатора против вещи получателя
type Trade struct {
	ID              uuid.UUID   `json:"id"`
	RequesterID     uuid.UUID   `json:"requester_id"`
	ResponderID     uuid.UUID   `json:"responder_id"`
	OfferedItemID   uuid.UUID   `json:"offered_item_id"`
	RequestedItemID uuid.UUID   `json:"requested_item_id"`
	Status          TradeStatus `json:"status"`
	Comment         string      `json:"comment,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	// Дополнительные поля для API
	OfferedItem   *Item `json:"offered_item,omitempty"`
	RequestedItem *Item `json:"requested_item,omitempty"`
	Requester     *User `json:"requester,omitempty"`
	Responder     *User `json:"responder,omitempty"`
}

// References сообщает, ссылается ли обмен на вещь
func (t *Trade) References(itemID uuid.UUID) bool {
	return t.OfferedItemID == itemID || t.RequestedItemID == itemID
}

// IsParty сообщает, является ли пользователь стороной обмена
func (t *Trade) IsParty(userID uuid.UUID) bool {
	return t.RequesterID == userID || t.ResponderID == userID
}

// CanTransition проверяет право пользователя на перевод обмена в статус next.
// Принять или отклонить может только получатель, отменить — только инициатор.
// Порядок проверок фиксирован: сначала право, затем текущий статус, чтобы
// проигравший гонку участник получал INVALID_STATE, а не FORBIDDEN.
func (t *Trade) CanTransition(actorID uuid.UUID, next TradeStatus) error {
	switch next {
	case TradeAccepted, TradeRejected:
		if actorID != t.ResponderID {
			return ErrForbidden("только получатель предложения может его принять или отклонить")
		}
	case TradeCancelled:
		if actorID != t.RequesterID {
			return ErrForbidden("только инициатор предложения может его отменить")
		}
	default:
		return ErrInvalidState("недопустимый целевой статус предложения")
	}

	if !t.Status.CanTransitionTo(next) {
		return ErrInvalidState("предложение уже не находится в ожидании")
	}
	return nil
}

// TradeProposal содержит данные для создания предложения обмена
type TradeProposal struct {
	RequesterID     uuid.UUID
	OfferedItemID   uuid.UUID
	RequestedItemID uuid.UUID
	Comment         string
}

// ValidateProposal проверяет инварианты нового предложения против уже
// загруженных вещей. Доступность вещей проверяется отдельно хранилищем.
func ValidateProposal(p TradeProposal, offered, requested *Item) error {
	if p.OfferedItemID == p.RequestedItemID {
		return ErrInvalidProposal("нельзя обменять вещь саму на себя")
	}
	if offered.UserID != p.RequesterID {
		return ErrInvalidProposal("нельзя предложить чужую вещь для обмена")
	}
	if requested.UserID == p.RequesterID {
		return ErrInvalidProposal("нельзя предложить обмен самому себе")
	}
	return nil
}
