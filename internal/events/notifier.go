package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier публикует события в Redis pub/sub, чтобы уведомления доходили
// до клиентов, подключенных к другим экземплярам сервиса. При nil-клиенте
// все операции превращаются в no-op: Redis необязателен.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier создает новый Notifier поверх клиента Redis
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Active сообщает, настроен ли Redis
func (n *Notifier) Active() bool {
	return n != nil && n.rdb != nil
}

// PublishUser отправляет событие в канал пользователя
func (n *Notifier) PublishUser(ctx context.Context, userID uuid.UUID, event Event) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}
	channel := fmt.Sprintf("notifications:user:%s", userID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartPatternSubscriber подписывается на каналы notifications:user:* и
// вызывает onMessage для каждого входящего события
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(userID uuid.UUID, payload []byte)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				raw := strings.TrimPrefix(msg.Channel, "notifications:user:")
				userID, err := uuid.Parse(raw)
				if err != nil {
					log.Printf("Некорректный канал уведомлений: %s", msg.Channel)
					continue
				}
				onMessage(userID, []byte(msg.Payload))
			}
		}
	}()

	return nil
}
