package trade

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swaply-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *TradeService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для создания предложения обмена
	api.Post("/", s.CreateTrade)

	// Маршрут для получения списка предложений обмена
	api.Get("/", s.GetMyTrades)

	// Маршрут для бейджа входящих ожидающих предложений
	api.Get("/pending/count", s.GetPendingCount)

	// Маршрут для получения одного предложения обмена
	api.Get("/:id", s.GetTrade)

	// Маршрут для обновления статуса предложения обмена
	api.Put("/:id/status", s.UpdateTradeStatus)

	// Маршруты переписки по обмену
	api.Get("/:id/messages", s.GetTradeMessages)
	api.Post("/:id/messages", s.SendTradeMessage)

	// Проверка доступности вещи живет здесь: сервис обменов —
	// единственный источник истины о доступности
	app.Get("/api/items/:id/availability", s.CheckItemAvailability)
}
