package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rajivgeraev/swaply-api/internal/events"
	"github.com/rajivgeraev/swaply-api/internal/notify"
)

// Консольный слушатель уведомлений: подключается к WebSocket серверу
// и печатает события обменов по мере поступления. Удобен для отладки.
func main() {
	var (
		serverURL = flag.String("url", "ws://localhost:8081/ws", "адрес WebSocket сервера")
		token     = flag.String("token", "", "JWT токен пользователя")
	)
	flag.Parse()

	if *token == "" {
		log.Fatal("❌ Укажите JWT токен: -token <...>")
	}

	listener := notify.NewListener(fmt.Sprintf("%s?token=%s", *serverURL, *token))

	listener.OnState(func(s notify.State) {
		log.Printf("Состояние подключения: %s", s)
	})

	listener.On(events.TypeTradeProposed, func(e events.Event) {
		fmt.Printf("🔔 Новое предложение обмена %s\n", e.TradeID)
	})
	listener.On(events.TypeTradeAccepted, func(e events.Event) {
		fmt.Printf("🤝 Обмен %s принят\n", e.TradeID)
	})
	listener.On(events.TypeTradeRejected, func(e events.Event) {
		fmt.Printf("🚫 Обмен %s отклонен\n", e.TradeID)
	})
	listener.On(events.TypeTradeCancelled, func(e events.Event) {
		fmt.Printf("↩️ Обмен %s отменен\n", e.TradeID)
	})
	listener.On(events.TypeNewMessage, func(e events.Event) {
		fmt.Printf("💬 Новое сообщение в обмене %s\n", e.TradeID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("❌ Слушатель остановлен: %v", err)
	}
}
