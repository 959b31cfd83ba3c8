package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/swaply-api/internal/config"
	"github.com/rajivgeraev/swaply-api/internal/db"
	"github.com/rajivgeraev/swaply-api/internal/events"
	"github.com/rajivgeraev/swaply-api/internal/services/auth"
	"github.com/rajivgeraev/swaply-api/internal/services/favorite"
	"github.com/rajivgeraev/swaply-api/internal/services/item"
	"github.com/rajivgeraev/swaply-api/internal/services/media"
	"github.com/rajivgeraev/swaply-api/internal/services/notification"
	"github.com/rajivgeraev/swaply-api/internal/services/trade"
	"github.com/rajivgeraev/swaply-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Подключаемся к Redis, если настроен
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Некорректный REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("⚠️ Redis недоступен, уведомления только локальные: %v", err)
			rdb = nil
		}
	}

	// Доменные события и доставка уведомлений
	bus := events.NewBus()
	notifier := events.NewNotifier(rdb)
	wsManager := websocket.NewManager()
	defer wsManager.Shutdown()

	bridge := websocket.NewBridge(wsManager, notifier)
	bus.Subscribe(bridge.HandleDomainEvent)

	// Каждое событие дополнительно сохраняется в БД: оффлайн-получатель
	// прочитает его через /api/notifications
	notificationService := notification.NewNotificationService(cfg)
	bus.Subscribe(notificationService.HandleDomainEvent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := notifier.StartPatternSubscriber(ctx, bridge.HandleRelayed); err != nil {
		log.Printf("⚠️ Ошибка подписки на Redis: %v", err)
	}

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Swaply API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Создаём сервисы
	authService := auth.NewAuthService(cfg)
	mediaService := media.NewMediaService(cfg)
	itemService := item.NewItemService(cfg, mediaService)
	favoriteService := favorite.NewFavoriteService(cfg)

	tradeStore := db.NewTradeStore(db.Pool)
	tradeManager := trade.NewManager(tradeStore, bus)
	tradeService := trade.NewTradeService(cfg, tradeManager)

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	mediaService.SetupRoutes(app)
	itemService.SetupRoutes(app)
	favoriteService.SetupRoutes(app)
	notificationService.SetupRoutes(app)
	tradeService.SetupRoutes(app)

	// WebSocket сервер на отдельном порту
	wsServer := websocket.NewServer(wsManager, authService.GetJWTService())
	go func() {
		if err := wsServer.Listen(":" + cfg.WSPort); err != nil {
			log.Printf("❌ WebSocket сервер остановлен: %v", err)
		}
	}()

	// Запускаем сервер
	log.Printf("✅ Swaply API запущен на порту %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
