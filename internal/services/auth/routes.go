package auth

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API авторизации
func (s *AuthService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/auth")

	// Публичные маршруты регистрации и входа
	api.Post("/signup", s.SignupHandler)
	api.Post("/login", s.LoginHandler)

	// Публичный профиль пользователя с его активными вещами
	app.Get("/api/users/:username", s.ProfileHandler)
}
