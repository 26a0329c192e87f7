package main

import (
	"context"
	"embed"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	fiberadapter "github.com/awslabs/aws-lambda-go-api-proxy/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"shaderland/backend/api"
	"shaderland/backend/shared"
	"shaderland/frontend/handlers"
	"shaderland/frontend/middleware"
)

//go:embed templates/*
var templates embed.FS

//go:embed static/*
var staticFiles embed.FS

func newApp(h *handlers.Handlers) *fiber.App {
	engine := html.NewFileSystem(http.FS(templates), ".html")

	app := fiber.New(fiber.Config{
		Views: engine,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.HTTPSRedirect)

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:       http.FS(staticFiles),
		PathPrefix: "static",
	}))

	setupRoutes(app, h)
	return app
}

func setupRoutes(app *fiber.App, h *handlers.Handlers) {
	// Pages
	app.Get("/", middleware.CreatorMiddleware, h.IndexHandler)
	app.Get("/s/:id", middleware.CreatorMiddleware, h.ShaderPageHandler)

	// Sandboxed shader documents
	app.Get("/s/:id/raw", h.RawShaderHandler)

	apiGroup := app.Group("/api")
	apiGroup.Get("/logs", h.GetLogsHandler)
	apiGroup.All("/*", h.APIHandler)
}

func main() {
	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := shared.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	store, closeStore, err := shared.NewShaderStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	h := &handlers.Handlers{
		Store:       store,
		APIEndpoint: cfg.APIEndpoint,
		LogGroup:    cfg.LogGroupName,
		Logger:      zlog.Named("frontend"),
	}
	if cfg.APIEndpoint == "" {
		h.API = api.NewHandler(shared.NewGenerator(cfg, store, zlog), store, zlog)
	}
	if cfg.LogGroupName != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			zlog.Fatal("aws config failed", zap.Error(err))
		}
		h.Logs = cloudwatchlogs.NewFromConfig(awsCfg)
	}

	app := newApp(h)

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		// Running in Lambda
		lambda.Start(fiberadapter.New(app).ProxyWithContext)
		return
	}

	// Running locally
	port := shared.GetEnv("PORT", "3000")
	zlog.Info("frontend listening", zap.String("port", port), zap.String("store", cfg.StoreDriver))
	if err := app.Listen(":" + port); err != nil {
		zlog.Fatal("listen failed", zap.Error(err))
	}
}
