package trade

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/events"
	"github.com/rajivgeraev/swaply-api/internal/models"
)

// Manager реализует жизненный цикл обмена: создание предложения,
// принятие, отклонение и отмену вместе с их побочными эффектами.
// Единственные переходы: pending -> accepted | rejected | cancelled,
// все конечные статусы поглощающие.
type Manager struct {
	store Store
	bus   *events.Bus
}

// NewManager создает новый Manager поверх хранилища и шины событий
func NewManager(store Store, bus *events.Bus) *Manager {
	return &Manager{store: store, bus: bus}
}

// Propose создает предложение обмена. Политика резервирования —
// разрешение конфликтов при принятии: несколько ожидающих предложений
// на одну вещь допустимы, каскад при accept снимает проигравшие.
func (m *Manager) Propose(ctx context.Context, p models.TradeProposal) (*models.Trade, error) {
	offered, err := m.store.GetItem(ctx, p.OfferedItemID)
	if err != nil {
		return nil, err
	}
	requested, err := m.store.GetItem(ctx, p.RequestedItemID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateProposal(p, offered, requested); err != nil {
		return nil, err
	}

	for _, itemID := range []uuid.UUID{p.OfferedItemID, p.RequestedItemID} {
		available, err := m.store.IsItemAvailable(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, models.ErrInvalidProposal("вещь уже недоступна для обмена")
		}
	}

	exists, err := m.store.HasPendingDuplicate(ctx, p, requested.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.ErrAlreadyExists("такое предложение обмена уже существует")
	}

	trade := &models.Trade{
		ID:              uuid.New(),
		RequesterID:     p.RequesterID,
		ResponderID:     requested.UserID,
		OfferedItemID:   p.OfferedItemID,
		RequestedItemID: p.RequestedItemID,
		Status:          models.TradePending,
		Comment:         p.Comment,
	}

	if err := m.store.CreateTrade(ctx, trade); err != nil {
		return nil, err
	}

	m.bus.Publish(events.Event{
		Type:        events.TypeTradeProposed,
		TradeID:     trade.ID,
		NewStatus:   models.TradePending,
		RequesterID: trade.RequesterID,
		ResponderID: trade.ResponderID,
		ActorID:     trade.RequesterID,
	})

	return trade, nil
}

// Accept принимает предложение. Доступно только получателю и только из
// pending. Остальные ожидающие предложения на любую из двух вещей
// каскадно отклоняются в той же транзакции.
func (m *Manager) Accept(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	return m.transition(ctx, tradeID, actorID, models.TradeAccepted)
}

// Reject отклоняет предложение. Доступно только получателю, только из pending.
func (m *Manager) Reject(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	return m.transition(ctx, tradeID, actorID, models.TradeRejected)
}

// Cancel отменяет предложение. Доступно только инициатору, только из pending.
func (m *Manager) Cancel(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	return m.transition(ctx, tradeID, actorID, models.TradeCancelled)
}

func (m *Manager) transition(ctx context.Context, tradeID, actorID uuid.UUID, next models.TradeStatus) (*models.Trade, error) {
	trade, err := m.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	if err := trade.CanTransition(actorID, next); err != nil {
		return nil, err
	}

	// Статус перепроверяется атомарно внутри хранилища: проигравший
	// гонку участник получит отсюда INVALID_STATE
	updated, cascaded, err := m.store.Transition(ctx, tradeID, next)
	if err != nil {
		return nil, err
	}

	m.bus.Publish(events.Event{
		Type:        events.TransitionType(next),
		TradeID:     updated.ID,
		OldStatus:   models.TradePending,
		NewStatus:   next,
		RequesterID: updated.RequesterID,
		ResponderID: updated.ResponderID,
		ActorID:     actorID,
	})

	// Каскадные отклонения — собственные переходы затронутых обменов.
	// ActorID не задаём: уведомить нужно обе стороны.
	for _, t := range cascaded {
		m.bus.Publish(events.Event{
			Type:        events.TypeTradeRejected,
			TradeID:     t.ID,
			OldStatus:   models.TradePending,
			NewStatus:   models.TradeRejected,
			RequesterID: t.RequesterID,
			ResponderID: t.ResponderID,
		})
	}

	return updated, nil
}

// GetTradeFor возвращает обмен, доступный пользователю как стороне
func (m *Manager) GetTradeFor(ctx context.Context, tradeID, userID uuid.UUID) (*models.Trade, error) {
	trade, err := m.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(userID) {
		return nil, models.ErrForbidden("у вас нет доступа к этому обмену")
	}
	return trade, nil
}

// ListTradesFor возвращает обмены пользователя с фильтрами по направлению
// (incoming/outgoing/all) и статусу, новые первыми
func (m *Manager) ListTradesFor(ctx context.Context, userID uuid.UUID, role string, status models.TradeStatus) ([]models.Trade, error) {
	return m.store.ListTrades(ctx, userID, role, status)
}

// ListPendingFor возвращает снимок входящих ожидающих предложений
// пользователя, новые первыми
func (m *Manager) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]models.Trade, error) {
	return m.store.ListTrades(ctx, userID, "incoming", models.TradePending)
}

// PendingCount считает входящие ожидающие предложения для бейджа.
// Каждый раз чистый запрос, без кешированного состояния.
func (m *Manager) PendingCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.store.CountPendingFor(ctx, userID)
}

// IsItemAvailable сообщает, можно ли сейчас предлагать или запрашивать вещь
func (m *Manager) IsItemAvailable(ctx context.Context, itemID uuid.UUID) (bool, error) {
	return m.store.IsItemAvailable(ctx, itemID)
}

// PostMessage добавляет сообщение в переписку обмена. Отправитель обязан
// быть стороной обмена; после отклонения или отмены переписка закрыта.
func (m *Manager) PostMessage(ctx context.Context, tradeID, senderID uuid.UUID, content string) (*models.Message, error) {
	trade, err := m.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(senderID) {
		return nil, models.ErrForbidden("отправитель не является стороной обмена")
	}
	if trade.Status == models.TradeRejected || trade.Status == models.TradeCancelled {
		return nil, models.ErrInvalidState("переписка по завершённому обмену закрыта")
	}

	msg := &models.Message{
		ID:       uuid.New(),
		TradeID:  trade.ID,
		SenderID: senderID,
		Content:  content,
	}

	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	m.bus.Publish(events.Event{
		Type:        events.TypeNewMessage,
		TradeID:     trade.ID,
		RequesterID: trade.RequesterID,
		ResponderID: trade.ResponderID,
		ActorID:     senderID,
		MessageID:   msg.ID,
	})

	return msg, nil
}

// ListMessages возвращает переписку обмена по возрастанию времени.
// Читать переписку могут только стороны обмена.
func (m *Manager) ListMessages(ctx context.Context, tradeID, userID uuid.UUID) ([]models.Message, error) {
	trade, err := m.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(userID) {
		return nil, models.ErrForbidden("у вас нет доступа к этой переписке")
	}
	return m.store.ListMessages(ctx, tradeID)
}
