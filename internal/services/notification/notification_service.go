package notification

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/config"
	"github.com/rajivgeraev/swaply-api/internal/db"
	"github.com/rajivgeraev/swaply-api/internal/events"
	"github.com/rajivgeraev/swaply-api/internal/models"
	"github.com/rajivgeraev/swaply-api/internal/utils"
)

// NotificationService хранит уведомления по доменным событиям и отдаёт их
// по HTTP. WebSocket доставляет события онлайн-пользователям, а запись в БД
// гарантирует, что оффлайн-получатель ничего не потеряет.
type NotificationService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// fromEvent строит запись уведомления для одного получателя события
func fromEvent(userID uuid.UUID, e events.Event) models.Notification {
	return models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    string(e.Type),
		TradeID: e.TradeID,
	}
}

// HandleDomainEvent — подписчик шины событий: сохраняет уведомление каждому
// получателю независимо от того, онлайн ли он сейчас
func (s *NotificationService) HandleDomainEvent(e events.Event) {
	for _, userID := range e.Recipients() {
		n := fromEvent(userID, e)
		if err := db.CreateNotification(&n); err != nil {
			log.Printf("Ошибка сохранения уведомления для %s: %v", userID, err)
		}
	}
}

// GetNotifications возвращает уведомления пользователя, новые первыми
func (s *NotificationService) GetNotifications(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	limit := 20
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	notifications, err := db.ListNotifications(userUUID, limit, offset)
	if err != nil {
		log.Printf("Ошибка запроса уведомлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения уведомлений"})
	}

	unread, err := db.CountUnreadNotifications(userUUID)
	if err != nil {
		log.Printf("Ошибка подсчета непрочитанных уведомлений: %v", err)
		// Игнорируем ошибку, просто не вернем счетчик
	}

	return c.JSON(models.NotificationResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		Limit:         limit,
		Offset:        offset,
	})
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	notificationUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID уведомления"})
	}

	ok, err := db.MarkNotificationRead(userUUID, notificationUUID)
	if err != nil {
		log.Printf("Ошибка при пометке уведомления прочитанным: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка обновления уведомления"})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Уведомление не найдено"})
	}

	return c.JSON(fiber.Map{"success": true})
}
