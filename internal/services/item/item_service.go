package item

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/swaply-api/internal/config"
	"github.com/rajivgeraev/swaply-api/internal/db"
	"github.com/rajivgeraev/swaply-api/internal/models"
	"github.com/rajivgeraev/swaply-api/internal/services/media"
	"github.com/rajivgeraev/swaply-api/internal/utils"
)

// ItemService представляет сервис для работы с вещами
type ItemService struct {
	cfg          *config.Config
	jwtService   *utils.JWTService
	mediaService *media.MediaService
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(cfg *config.Config, mediaService *media.MediaService) *ItemService {
	return &ItemService{
		cfg:          cfg,
		jwtService:   utils.NewJWTService(cfg.JWTSecret),
		mediaService: mediaService,
	}
}

// imagePayload описывает изображение в теле запроса
type imagePayload struct {
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
	PublicID   string `json:"public_id"`
	IsMain     bool   `json:"is_main"`
}

// CreateItem создает новую вещь
func (s *ItemService) CreateItem(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Category    string         `json:"category"`
		Images      []imagePayload `json:"images"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	requestData.Title = strings.TrimSpace(requestData.Title)
	if requestData.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Название вещи обязательно"})
	}

	if !models.IsValidCategory(requestData.Category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неизвестная категория"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Ошибка начала транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}
	defer tx.Rollback(ctx)

	itemID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO items (id, user_id, title, description, category, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
	`, itemID, userUUID, requestData.Title, requestData.Description, requestData.Category)

	if err != nil {
		log.Printf("Ошибка создания вещи: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения вещи"})
	}

	for i, img := range requestData.Images {
		_, err = tx.Exec(ctx, `
			INSERT INTO item_images (id, item_id, url, preview_url, public_id, is_main, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), itemID, img.URL, img.PreviewURL, img.PublicID, img.IsMain || i == 0, i)

		if err != nil {
			log.Printf("Ошибка сохранения изображения: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения изображений"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("Ошибка фиксации транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка базы данных"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"item_id": itemID,
	})
}

// GetMyItems возвращает вещи текущего пользователя
func (s *ItemService) GetMyItems(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM items
		WHERE user_id = $1 AND status != 'deleted'
		ORDER BY created_at DESC
	`, userUUID)

	if err != nil {
		log.Printf("Ошибка запроса вещей: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения вещей"})
	}
	defer rows.Close()

	items, err := s.collectItems(rows)
	if err != nil {
		log.Printf("Ошибка обработки вещей: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения вещей"})
	}

	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// GetPublicItems возвращает каталог активных вещей с фильтрами и поиском
func (s *ItemService) GetPublicItems(c fiber.Ctx) error {
	limit := 20
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	category := c.Query("category")
	search := strings.TrimSpace(c.Query("q"))

	query := `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM items
		WHERE status = 'active'
	`
	args := []interface{}{}
	argPos := 1

	if category != "" {
		if !models.IsValidCategory(category) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неизвестная категория"})
		}
		query += ` AND category = $` + strconv.Itoa(argPos)
		args = append(args, category)
		argPos++
	}

	if search != "" {
		query += ` AND (title ILIKE $` + strconv.Itoa(argPos) + ` OR description ILIKE $` + strconv.Itoa(argPos) + `)`
		args = append(args, "%"+search+"%")
		argPos++
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argPos) + ` OFFSET $` + strconv.Itoa(argPos+1)
	args = append(args, limit, offset)

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("Ошибка запроса каталога: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения вещей"})
	}
	defer rows.Close()

	items, err := s.collectItems(rows)
	if err != nil {
		log.Printf("Ошибка обработки вещей: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения вещей"})
	}

	return c.JSON(fiber.Map{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// GetItem возвращает одну вещь по ID
func (s *ItemService) GetItem(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var item models.Item
	err = db.Pool.QueryRow(ctx, `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM items
		WHERE id = $1 AND status != 'deleted'
	`, itemID).Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Вещь не найдена"})
		}
		log.Printf("Ошибка запроса вещи: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения вещи"})
	}

	item.Images = s.loadImages(item.ID)

	// Владелец для карточки вещи
	var owner models.User
	err = db.Pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(avatar_url, '') FROM users WHERE id = $1
	`, item.UserID).Scan(&owner.ID, &owner.Username, &owner.AvatarURL)
	if err == nil {
		item.Owner = owner.PublicProfile()
	}

	return c.JSON(fiber.Map{"item": item})
}

// UpdateItem обновляет вещь владельца
func (s *ItemService) UpdateItem(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	var requestData struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	requestData.Title = strings.TrimSpace(requestData.Title)
	if requestData.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Название вещи обязательно"})
	}

	if !models.IsValidCategory(requestData.Category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неизвестная категория"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Редактировать можно только свою активную вещь
	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET title = $1, description = $2, category = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5 AND status = 'active'
	`, requestData.Title, requestData.Description, requestData.Category, itemID, userUUID)

	if err != nil {
		log.Printf("Ошибка обновления вещи: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обновления вещи"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Вещь не найдена или недоступна для редактирования"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"item_id": itemID,
	})
}

// DeleteItem удаляет вещь владельца (мягкое удаление) и подчищает
// изображения в Cloudinary в фоне
func (s *ItemService) DeleteItem(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `
		UPDATE items
		SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status != 'deleted'
	`, itemID, userUUID)

	if err != nil {
		log.Printf("Ошибка удаления вещи: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка удаления вещи"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Вещь не найдена"})
	}

	// Удаление из Cloudinary — best-effort, на ответ не влияет
	images := s.loadImages(itemID)
	go func() {
		for _, img := range images {
			if img.PublicID == "" {
				continue
			}
			if err := s.mediaService.DestroyAsset(img.PublicID); err != nil {
				log.Printf("Ошибка удаления изображения %s из Cloudinary: %v", img.PublicID, err)
			}
		}
	}()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вещь успешно удалена",
	})
}

// SearchAutocomplete возвращает подсказки названий для строки поиска
func (s *ItemService) SearchAutocomplete(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 2 {
		return c.JSON(fiber.Map{"suggestions": []string{}})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT title
		FROM items
		WHERE status = 'active' AND title ILIKE $1
		ORDER BY title ASC
		LIMIT 10
	`, "%"+query+"%")

	if err != nil {
		log.Printf("Ошибка запроса подсказок: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка поиска"})
	}
	defer rows.Close()

	suggestions := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			continue
		}
		suggestions = append(suggestions, title)
	}

	return c.JSON(fiber.Map{"suggestions": suggestions})
}

// GetCategories возвращает фиксированный список категорий
func (s *ItemService) GetCategories(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": models.Categories})
}

// collectItems сканирует строки вещей и подгружает их изображения
func (s *ItemService) collectItems(rows pgx.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Title,
			&item.Description,
			&item.Category,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	for i := range items {
		items[i].Images = s.loadImages(items[i].ID)
	}

	return items, nil
}

// loadImages получает изображения вещи в порядке позиций
func (s *ItemService) loadImages(itemID uuid.UUID) []models.ItemImage {
	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, item_id, url, COALESCE(preview_url, ''), public_id, is_main, position, created_at
		FROM item_images
		WHERE item_id = $1
		ORDER BY position ASC
	`, itemID)

	if err != nil {
		log.Printf("Ошибка получения изображений: %v", err)
		return nil
	}
	defer rows.Close()

	var images []models.ItemImage
	for rows.Next() {
		var img models.ItemImage
		if err := rows.Scan(&img.ID, &img.ItemID, &img.URL, &img.PreviewURL, &img.PublicID, &img.IsMain, &img.Position, &img.CreatedAt); err != nil {
			log.Printf("Ошибка сканирования изображения: %v", err)
			continue
		}
		images = append(images, img)
	}

	return images
}
