package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/swaply-api/internal/events"
)

// State описывает состояние подключения слушателя
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
)

// Conn — минимальный интерфейс соединения, достаточный для слушателя.
// Позволяет подставить фейковое соединение в тестах.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer устанавливает соединение с сервером уведомлений
type Dialer func(ctx context.Context, url string) (Conn, error)

// Handler обрабатывает одно входящее событие
type Handler func(e events.Event)

// Listener подключается к WebSocket серверу уведомлений, читает события
// и раздает их обработчикам по типу события. При обрыве соединения
// переподключается с фиксированным интервалом, ограниченное число раз.
type Listener struct {
	url           string
	dialer        Dialer
	maxRetries    int
	retryInterval time.Duration

	mu       sync.Mutex
	state    State
	handlers map[events.Type]Handler
	onState  func(State)
}

// NewListener создает новый Listener для указанного URL
func NewListener(url string) *Listener {
	return &Listener{
		url:           url,
		dialer:        defaultDialer,
		maxRetries:    5,
		retryInterval: 3 * time.Second,
		state:         StateDisconnected,
		handlers:      make(map[events.Type]Handler),
	}
}

// defaultDialer использует gorilla/websocket
func defaultDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SetDialer заменяет способ установки соединения
func (l *Listener) SetDialer(d Dialer) {
	l.dialer = d
}

// SetRetry настраивает политику переподключения
func (l *Listener) SetRetry(maxRetries int, interval time.Duration) {
	l.maxRetries = maxRetries
	l.retryInterval = interval
}

// OnState регистрирует колбэк смены состояния подключения
func (l *Listener) OnState(fn func(State)) {
	l.onState = fn
}

// On регистрирует обработчик для типа события
func (l *Listener) On(t events.Type, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[t] = h
}

// State возвращает текущее состояние подключения
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	onState := l.onState
	l.mu.Unlock()

	if changed && onState != nil {
		onState(s)
	}
}

// Run подключается и читает события до отмены контекста.
// Возвращает ошибку, если исчерпаны попытки подключения.
func (l *Listener) Run(ctx context.Context) error {
	attempts := 0

	for {
		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return ctx.Err()
		}

		l.setState(StateConnecting)
		conn, err := l.dialer(ctx, l.url)
		if err != nil {
			attempts++
			if attempts >= l.maxRetries {
				l.setState(StateFailed)
				return fmt.Errorf("не удалось подключиться после %d попыток: %w", attempts, err)
			}
			l.setState(StateDisconnected)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.retryInterval):
			}
			continue
		}

		l.setState(StateConnected)
		attempts = 0

		err = l.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return ctx.Err()
		}

		log.Printf("Соединение потеряно: %v", err)
		l.setState(StateDisconnected)
		attempts++
		if attempts >= l.maxRetries {
			l.setState(StateFailed)
			return fmt.Errorf("соединение потеряно, попытки исчерпаны: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

// readLoop читает сообщения до ошибки или отмены контекста
func (l *Listener) readLoop(ctx context.Context, conn Conn) error {
	// Закрываем соединение при отмене контекста, чтобы разблокировать чтение
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.dispatch(payload)
	}
}

// dispatch разбирает событие и вызывает обработчик его типа
func (l *Listener) dispatch(payload []byte) {
	var event events.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("Некорректное событие: %v", err)
		return
	}

	l.mu.Lock()
	handler, ok := l.handlers[event.Type]
	l.mu.Unlock()

	if !ok {
		log.Printf("Нет обработчика для события %s", event.Type)
		return
	}

	handler(event)
}
