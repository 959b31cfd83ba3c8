package item

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swaply-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API вещей
func (s *ItemService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Публичные маршруты каталога
	app.Get("/api/items", s.GetPublicItems)
	app.Get("/api/categories", s.GetCategories)
	app.Get("/api/search/autocomplete", s.SearchAutocomplete)

	// Маршрут для создания вещи
	app.Post("/api/items", s.CreateItem, auth)

	// Маршрут для получения списка своих вещей
	app.Get("/api/items/my", s.GetMyItems, auth)

	// Маршрут для обновления вещи
	app.Put("/api/items/:id", s.UpdateItem, auth)

	// Маршрут для удаления вещи
	app.Delete("/api/items/:id", s.DeleteItem, auth)

	// Публичная карточка вещи (после /my, чтобы не перехватывать маршрут)
	app.Get("/api/items/:id", s.GetItem)
}
