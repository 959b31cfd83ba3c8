package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/events"
)

// Bridge доставляет доменные события обменов подключенным клиентам.
// При активном Redis события уходят в pub/sub и возвращаются через
// подписку на notifications:user:* — так уведомления доходят до клиентов,
// подключенных к другим экземплярам API. Без Redis доставка прямая.
type Bridge struct {
	manager  *Manager
	notifier *events.Notifier
}

// NewBridge создает новый экземпляр Bridge
func NewBridge(manager *Manager, notifier *events.Notifier) *Bridge {
	return &Bridge{
		manager:  manager,
		notifier: notifier,
	}
}

// HandleDomainEvent — обработчик для events.Bus
func (b *Bridge) HandleDomainEvent(e events.Event) {
	ctx := context.Background()
	for _, userID := range e.Recipients() {
		if b.notifier.Active() {
			if err := b.notifier.PublishUser(ctx, userID, e); err != nil {
				log.Printf("Ошибка публикации события в Redis: %v", err)
			}
			continue
		}
		b.deliver(userID, e)
	}
}

// HandleRelayed — обработчик для подписки Notifier на каналы Redis
func (b *Bridge) HandleRelayed(userID uuid.UUID, payload []byte) {
	var e events.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		log.Printf("Некорректное событие из Redis: %v", err)
		return
	}
	b.deliver(userID, e)
}

// deliver переводит доменное событие в формат WebSocket и отправляет
// всем соединениям пользователя
func (b *Bridge) deliver(userID uuid.UUID, e events.Event) {
	wsEvent := Event{
		Type:      EventType(e.Type),
		TradeID:   e.TradeID.String(),
		Timestamp: e.Timestamp,
	}

	if e.ActorID != uuid.Nil {
		wsEvent.UserID = e.ActorID.String()
	}

	if e.MessageID != uuid.Nil {
		wsEvent.MessageID = e.MessageID.String()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("Ошибка сериализации события: %v", err)
		return
	}
	wsEvent.Payload = payload

	b.manager.SendToUser(userID.String(), wsEvent)
}
