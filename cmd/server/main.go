package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/domain/prompt"
	"github.com/convohq/chat-api/internal/infrastructure/auth"
	"github.com/convohq/chat-api/internal/infrastructure/crontab"
	"github.com/convohq/chat-api/internal/infrastructure/database"
	"github.com/convohq/chat-api/internal/infrastructure/database/repository/chatrepo"
	"github.com/convohq/chat-api/internal/infrastructure/database/repository/documentrepo"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/infrastructure/inference"
	"github.com/convohq/chat-api/internal/infrastructure/logger"
	"github.com/convohq/chat-api/internal/infrastructure/observability"
	"github.com/convohq/chat-api/internal/infrastructure/tools"
	"github.com/convohq/chat-api/internal/interfaces/httpserver"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/handlers/documenthandler"
	v1 "github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1"
	chatroute "github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	documentroute "github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/document"
	voteroute "github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/vote"
)

// defaultAssistants is the built-in persona catalog. Deployments extend it
// by registering additional providers and entries here.
func defaultAssistants() []*model.Assistant {
	return []*model.Assistant{
		{
			ID:       "travel-guide",
			Name:     "Travel Guide",
			Guidance: "You are a travel planning expert. Suggest itineraries, local food and practical transit advice.",
		},
		{
			ID:       "code-reviewer",
			Name:     "Code Reviewer",
			Guidance: "You review code for correctness, clarity and idiomatic style. Point at concrete lines and suggest fixes.",
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.GetLogger()
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog := logger.GetLogger()
		bootLog.Fatal().Err(err).Msg("configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	gormDB, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if cfg.AutoMigrate {
		if err := database.Migration(gormDB); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
	}
	db := transaction.NewDatabase(gormDB)

	application := buildApplication(cfg, log, db)

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Int("metrics_port", cfg.MetricsPort).
		Str("environment", cfg.Environment).
		Msg("starting chat-api")

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped")
	}
}

func buildApplication(cfg *config.Config, log zerolog.Logger, db *transaction.Database) *Application {
	chatService := chat.NewChatService(
		chatrepo.NewChatGormRepository(db),
		chatrepo.NewMessageGormRepository(db),
		chatrepo.NewStreamGormRepository(db),
		chatrepo.NewVoteGormRepository(db),
	)
	documentService := document.NewService(documentrepo.NewDocumentGormRepository(db))

	providerClient := inference.NewClient(resty.New(), "default", cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	providerClient.SetStreamTimeout(cfg.RequestBudget)
	registry := inference.NewRegistry(providerClient, map[string]string{
		model.BaseChatModel:      "llama-3.1-8b-instruct",
		model.BaseReasoningModel: "deepseek-r1-distill-llama-8b",
	})

	toolRegistry := tools.NewRegistry(
		tools.NewWeatherTool(resty.New(), cfg.WeatherBaseURL),
		tools.NewCreateDocumentTool(documentService),
		tools.NewUpdateDocumentTool(documentService),
		tools.NewSuggestionsTool(documentService, providerClient, "llama-3.1-8b-instruct"),
		tools.NewProductSearchTool(tools.DefaultCatalog()),
	)

	chatHandler := chathandler.NewChatHandler(
		chatService,
		model.NewStaticAssistantDirectory(defaultAssistants()),
		prompt.NewProcessor(log),
		registry,
		toolRegistry,
		cfg.Timeouts(),
		cfg.MaxToolSteps,
		cfg.ResumptionWindow,
		log,
	)
	documentHandler := documenthandler.NewDocumentHandler(documentService, cfg.DBTimeout, log)

	v1Route := v1.NewV1Route(
		chatroute.NewChatRoute(chatHandler),
		voteroute.NewVoteRoute(chatHandler),
		documentroute.NewDocumentRoute(documentHandler),
	)

	resolver := auth.NewJWTSessionResolver(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionAudience)

	return &Application{
		httpServer: httpserver.NewHTTPServer(v1Route, resolver, cfg, log),
		crontab:    crontab.NewCrontab(chatService, cfg.StreamMarkerTTL),
		config:     cfg,
	}
}
