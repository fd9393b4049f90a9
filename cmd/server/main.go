package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/IlyaVishnyakMuz/apgram-backend/configs"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/api/handlers"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/api/middleware"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/delivery"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/dispatch"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/queue"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/repository"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    20 * 1024 * 1024, // 20 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	channelRepo := repository.NewChannelRepository(db)

	bus := notify.New()

	gateway, err := delivery.NewTelegramGateway(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("Failed to create telegram gateway: %v", err)
	}

	mediaService := service.NewMediaService(*cfg)
	postService := service.NewPostService(postRepo, mediaService, bus)
	channelService := service.NewChannelService(channelRepo)
	generator := service.NewHTTPGenerator(cfg.GeneratorURL)

	engine := dispatch.NewEngine(postRepo, channelRepo, gateway, mediaService, bus, dispatch.Config{
		ClaimLease:  cfg.ClaimLease,
		BatchLimit:  cfg.ScanBatchLimit,
		Concurrency: cfg.DispatchConcurrency,
	})

	resolver := middleware.NewRequesterResolver(*cfg, userRepo)
	authMiddleware := middleware.NewAuthMiddleware(resolver)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, engine)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/update", post.UpdatePost)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/cancel", post.CancelSchedule)
	api.Post("/posts/dispatch", post.DispatchPost)
	api.Post("/posts/remove", post.RemovePost)

	user := handlers.NewUserHandler(userRepo)
	api.Get("/user/info", user.GetUserInfo)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.UploadMedia)

	channel := handlers.NewChannelHandler(channelService)
	api.Get("/channel", channel.GetChannel)
	api.Post("/channel/connect", channel.ConnectChannel)
	api.Post("/channel/disconnect", channel.DisconnectChannel)

	generate := handlers.NewGenerateHandler(client)
	api.Post("/generate", generate.GenerateDrafts)

	events := handlers.NewEventsHandler(bus)
	api.Use("/events", events.Upgrade())
	api.Get("/events", events.Stream())

	// queue worker
	queueW := queue.NewQueue(postRepo, generator, bus)

	// periodic dispatch scan
	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.ScanInterval), engine.Scan)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeGenerateDrafts, queueW.HandleGenerateDraftsTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, c, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
