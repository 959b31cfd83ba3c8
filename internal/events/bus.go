package events

import (
	"sync"
	"time"
)

// Handler обрабатывает доменное событие
type Handler func(Event)

// Bus — внутрипроцессная шина доменных событий. Публикация не блокирует
// вызывающего: каждый обработчик получает событие в своей горутине.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus создает новую шину событий
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe регистрирует обработчик событий
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish рассылает событие всем подписчикам
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(e)
	}
}
