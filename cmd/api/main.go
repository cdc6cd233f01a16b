package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/saan-app/saan_be/internal/config"
	"github.com/saan-app/saan_be/internal/db"
	"github.com/saan-app/saan_be/internal/handlers"
	"github.com/saan-app/saan_be/internal/jobs"
	applog "github.com/saan-app/saan_be/internal/logger"
	"github.com/saan-app/saan_be/internal/middleware"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/realtime"
	"github.com/saan-app/saan_be/internal/services/elder"
	"github.com/saan-app/saan_be/internal/services/matching"
	"github.com/saan-app/saan_be/internal/services/otp"
	"github.com/saan-app/saan_be/internal/services/product"
	"github.com/saan-app/saan_be/internal/services/profile"
	"github.com/saan-app/saan_be/internal/services/tasks"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	zl, err := applog.Init(cfg.Production(), cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		zap.L().Fatal("connect database", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		zap.L().Fatal("migrate database", zap.Error(err))
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("redis not reachable", zap.Error(err))
	}

	ids, err := utils.NewIDCodec(cfg.IDEncryptKey)
	if err != nil {
		zap.L().Fatal("id codec", zap.Error(err))
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.AppBaseURL)
	if err != nil {
		zap.L().Fatal("upload store", zap.Error(err))
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	bridge := realtime.NewBridge(rdb, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			zap.L().Error("notification bridge stopped", zap.Error(err))
		}
	}()

	sched, err := jobs.Schedule(cfg.BlobSweepCron, jobs.NewBlobSweeper(gdb, store, cfg.BlobSweepGrace))
	if err != nil {
		zap.L().Fatal("blob sweeper", zap.Error(err))
	}
	defer sched.Stop()

	publisher := realtime.NewPublisher(rdb)
	mailer := otp.NewMailer(otp.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	otpSvc := otp.NewService(rdb, mailer)
	profileSvc := profile.NewProfileService(gdb, store)
	elderSvc := elder.NewElderService(gdb, store)
	productSvc := product.NewProductService(gdb, store)
	matchingSvc := matching.NewMatchingService(gdb)
	taskSvc := tasks.NewTaskService(gdb, tasks.NewSelectionStore(rdb), publisher)

	cookies := handlers.SessionCookies{
		JWTSecret:  cfg.JWTSecret,
		ExpiresMin: cfg.JWTExpiresMin,
		Secure:     cfg.Production(),
	}

	authH := handlers.NewAuthHandler(gdb, cookies, otpSvc)
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		Cookies:         cookies,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	profileH := handlers.NewProfileHandler(profileSvc, cookies)
	elderH := handlers.NewElderHandler(elderSvc)
	productH := handlers.NewProductHandler(productSvc, ids)
	matchingH := handlers.NewMatchingHandler(matchingSvc, taskSvc)
	taskH := handlers.NewTaskHandler(taskSvc)
	dashboardH := handlers.NewDashboardHandler(gdb)
	notifyH := handlers.NewNotificationHandler(hub)

	app := fiber.New(fiber.Config{
		BodyLimit:    2*storage.MaxImageSize + 1<<20,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)

	auth := []fiber.Handler{
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachSession(),
	}
	manager := middleware.RequireRoles(models.RoleVolunteer, models.RoleBroker)
	volunteer := middleware.RequireRoles(models.RoleVolunteer)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Post("/auth/otp/send", authH.SendOTP)
	api.Post("/auth/verify-email", authH.VerifyEmail)
	api.Post("/auth/reset-password", authH.ResetPassword)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/products/:id", productH.GetDetail)

	// any signed-in user, role or not
	protected := api.Group("/", auth...)
	protected.Get("/me", authH.Me)
	protected.Get("/profile", profileH.Get)
	protected.Post("/profile/role", profileH.RegisterRole)

	// volunteers and brokers manage elders, products and cards
	protected.Get("/dashboard/stats", manager, dashboardH.Stats)
	protected.Get("/elders", manager, elderH.List)
	protected.Post("/elders", manager, elderH.Create)
	protected.Get("/elders/:id", manager, elderH.Get)
	protected.Get("/elders/:id/products", manager, productH.ListByElder)
	protected.Post("/elders/:id/products", manager, productH.Create)
	protected.Put("/products/:id", manager, productH.Update)
	protected.Delete("/products/:id", manager, productH.Delete)
	protected.Get("/elder-cards", manager, elderH.ListCards)
	protected.Post("/elder-cards", manager, elderH.CreateCard)
	protected.Get("/elder-cards/:id", manager, elderH.GetCard)

	// volunteers only
	protected.Get("/matching/cards", volunteer, matchingH.Feed)
	protected.Get("/matching/cards/:id", volunteer, matchingH.Card)
	protected.Patch("/matching/cards/:id/selection", volunteer, matchingH.ToggleSelection)
	protected.Post("/matching/cards/:id/tasks", volunteer, matchingH.Submit)
	protected.Get("/tasks", volunteer, taskH.List)
	protected.Get("/tasks/:id", volunteer, taskH.Get)
	protected.Patch("/tasks/:id/ship", volunteer, taskH.Ship)
	protected.Patch("/tasks/:id/complete", volunteer, taskH.Complete)

	// websocket, authenticated by the same cookie before the upgrade
	app.Get("/ws/notifications",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachSession(),
		notifyH.Upgrade,
		websocket.New(notifyH.Handle),
	)

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zap.L().Error("shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("api listening", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zap.L().Fatal("listen", zap.Error(err))
	}
}
