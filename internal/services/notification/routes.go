package notification

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swaply-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API уведомлений
func (s *NotificationService) SetupRoutes(app *fiber.App) {
	// Группа для API уведомлений
	api := app.Group("/api/notifications")

	// Все маршруты уведомлений требуют авторизации
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для получения списка уведомлений
	api.Get("/", s.GetNotifications)

	// Маршрут для пометки уведомления прочитанным
	api.Put("/:id/read", s.MarkRead)
}
