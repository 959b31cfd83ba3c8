package media

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swaply-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API загрузки медиа
func (s *MediaService) SetupRoutes(app *fiber.App) {
	// Маршрут для получения параметров загрузки (требует авторизации)
	app.Get("/api/upload/params", s.GenerateUploadParams, middleware.AuthMiddleware(s.jwtService))
}
