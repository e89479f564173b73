package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/jhoicas/lokario-api/internal/application/agenda"
	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/cron"
	"github.com/jhoicas/lokario-api/internal/application/followup"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/messaging"
	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/application/usecase"
	infraai "github.com/jhoicas/lokario-api/internal/infrastructure/ai"
	"github.com/jhoicas/lokario-api/internal/infrastructure/export"
	"github.com/jhoicas/lokario-api/internal/infrastructure/mail"
	infrapdf "github.com/jhoicas/lokario-api/internal/infrastructure/pdf"
	"github.com/jhoicas/lokario-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/lokario-api/internal/infrastructure/redis"
	"github.com/jhoicas/lokario-api/internal/infrastructure/storage"
	"github.com/jhoicas/lokario-api/internal/infrastructure/vonage"
	httpRouter "github.com/jhoicas/lokario-api/internal/interfaces/http"
	"github.com/jhoicas/lokario-api/pkg/config"
	"github.com/jhoicas/lokario-api/pkg/logger"
	"github.com/jhoicas/lokario-api/pkg/secrets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Todas las consultas pasan por el circuit breaker.
	db := postgres.NewGuarded(pool, postgres.DefaultBreaker, log.Component("postgres"))
	txRunner := postgres.NewTxRunner(db)
	repos := postgres.NewRepos(db)

	cipher, err := secrets.New(cfg.Security.EncryptionMasterKey, log.Component("secrets"))
	if err != nil {
		log.Fatal().Err(err).Msg("cifrado de credenciales")
	}

	// ── Adaptadores ───────────────────────────────────────────────────────────

	var locker ports.Locker = postgres.NewAdvisoryLocker(pool)
	if cfg.Redis.Address != "" {
		rdb, err := infraredis.Connect(ctx, cfg.Redis, 5, log.Component("redis"))
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = infraredis.NewLocker(rdb)
	}

	var blobs ports.BlobStore
	var localFiles *storage.LocalStore
	switch cfg.Storage.Provider {
	case "gcs":
		gcsStore, err := storage.NewGCSStore(ctx, cfg.Storage.GCSBucket, cfg.Storage.CredentialsJSON)
		if err != nil {
			log.Fatal().Err(err).Msg("almacenamiento GCS")
		}
		defer gcsStore.Close()
		blobs = gcsStore
	default:
		localFiles, err = storage.NewLocalStore(cfg.Storage.LocalDir, cfg.HTTP.PublicURL, []byte(cfg.JWT.Secret))
		if err != nil {
			log.Fatal().Err(err).Msg("almacenamiento local")
		}
		blobs = localFiles
	}

	var llm ports.LLMService
	llmModel := cfg.LLM.OpenAIModel
	switch cfg.LLM.Provider {
	case "anthropic":
		llm = infraai.NewAnthropicService(cfg.LLM.AnthropicKey, cfg.LLM.AnthropicModel)
		llmModel = cfg.LLM.AnthropicModel
	default:
		llm = infraai.NewOpenAIService(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIModel)
	}
	llm = infraai.NewThrottled(llm, cfg.LLM.CallsPerMinute, time.Duration(cfg.LLM.ThrottleWaitSec)*time.Second, log.Component("llm"))

	if !cfg.SMTP.Enabled() && cfg.SMTP.SendGridAPIKey == "" {
		log.Warn().Msg("SMTP no configurado: solo se envían correos con credenciales de integración")
	}
	emailSender := mail.NewSMTPSender(cfg.SMTP, log.Component("smtp"))
	var textSender ports.TextSender
	if cfg.Vonage.Enabled() {
		textSender = vonage.NewTextSender(cfg.Vonage)
	}

	dispatch := messaging.NewDispatcher(emailSender, textSender, cipher, messaging.Defaults{
		EmailFrom: cfg.SMTP.From,
		EmailName: cfg.App.Name,
		SMSFrom:   cfg.Vonage.From,
	}, log.Component("messaging"))

	images := infrapdf.NewImageLoader(blobs, filepath.Join(os.TempDir(), "lokario-pdf"), log.Component("pdf"))
	go images.RunSweeper(ctx, 15*time.Minute, cron.TempImageMaxAge)

	// ── Casos de uso ──────────────────────────────────────────────────────────

	lim := limits.NewService(repos)
	authUC := auth.NewAuthUseCase(txRunner, repos.Users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, log.Component("auth"))
	companyUC := usecase.NewCompanyUseCase(txRunner, repos, lim, log.Component("company"))
	userUC := usecase.NewUserUseCase(repos.Users, log.Component("users"))

	clientUC := billing.NewClientUseCase(txRunner, repos.Clients, lim)
	quoteUC := billing.NewQuoteUseCase(txRunner, repos, lim, log.Component("billing"))
	invoiceUC := billing.NewInvoiceUseCase(txRunner, repos, lim, log.Component("billing"))
	pdfUC := billing.NewPDFUseCase(repos, infrapdf.NewMarotoPDFGenerator(), images, cfg.App.PublicAppURL, log.Component("pdf"))
	exportUC := billing.NewExportUseCase(repos, lim, export.NewExcelWriter(), log.Component("export"))
	signatureUC := billing.NewSignatureUseCase(txRunner, repos, emailSender, billing.SignatureConfig{
		From:      cfg.SMTP.From,
		FromName:  cfg.App.Name,
		PublicURL: cfg.App.PublicAppURL,
	}, log.Component("signature"))

	inboxLog := log.Component("inbox")
	replies := inbox.NewAutoReplier(txRunner, llm, llmModel, dispatch, inboxLog)
	classifier := inbox.NewClassifier(llm, llmModel, inboxLog)
	pipeline := inbox.NewPipeline(txRunner, blobs, classifier, replies, inboxLog)
	syncSvc := inbox.NewSyncService(txRunner, repos, mail.NewIMAPFetcher(inboxLog), pipeline, cipher, inboxLog)
	folderUC := inbox.NewFolderUseCase(txRunner, repos)
	conversationUC := inbox.NewConversationUseCase(txRunner, repos, dispatch, replies, blobs, inboxLog)
	integrationUC := inbox.NewIntegrationUseCase(txRunner, repos, lim, cipher, syncSvc, inboxLog)
	webhookUC := inbox.NewWebhookUseCase(repos, pipeline, cipher, cfg.Security.WebhookSecret, inboxLog)
	webhookUC.RequireSignature = cfg.App.IsProduction()
	if cfg.Security.WebhookSecret == "" {
		log.Warn().Bool("rejected", webhookUC.RequireSignature).Msg("WEBHOOK_SECRET vacío: las integraciones sin secreto propio no se verifican")
	}

	followUpLog := log.Component("followup")
	followUpUC := followup.NewUseCase(txRunner, repos, lim, dispatch, followUpLog)
	scheduler := followup.NewScheduler(txRunner, repos, lim, dispatch, followUpLog)

	taskUC := agenda.NewTaskUseCase(txRunner, repos)
	appointmentUC := agenda.NewAppointmentUseCase(txRunner, repos, lim)
	notificationUC := notification.NewUseCase(repos.Notifications)

	jobs := cron.Jobs{
		Repos:       repos,
		Sync:        syncSvc,
		Pipeline:    pipeline,
		AutoReplier: replies,
		Invoices:    invoiceUC,
		Quotes:      quoteUC,
		Reminders:   agenda.NewReminders(repos),
		FollowUps:   scheduler,
		Auth:        authUC,
		TempFiles:   images,
	}
	cronDispatcher := cron.NewDispatcher(locker, log.Component("cron"), jobs.Steps()...)

	// ── HTTP ──────────────────────────────────────────────────────────────────

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60, // la ingesta del cron y los PDF pueden tardar
		IdleTimeout:  time.Second * 60,
		BodyLimit:    int(cfg.Upload.MaxSize) + 1024*1024,
		ErrorHandler: httpRouter.ErrorHandler(log.Component("http")),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Lokario API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	deps := httpRouter.RouterDeps{
		AuthUC:         authUC,
		CompanyUC:      companyUC,
		UserUC:         userUC,
		Limits:         lim,
		ClientUC:       clientUC,
		QuoteUC:        quoteUC,
		InvoiceUC:      invoiceUC,
		PDFUC:          pdfUC,
		ExportUC:       exportUC,
		SignatureUC:    signatureUC,
		FolderUC:       folderUC,
		ConversationUC: conversationUC,
		IntegrationUC:  integrationUC,
		WebhookUC:      webhookUC,
		FollowUpUC:     followUpUC,
		TaskUC:         taskUC,
		AppointmentUC:  appointmentUC,
		NotificationUC: notificationUC,
		Cron:           cronDispatcher,
		CronSecret:     cfg.Security.CronSecret,
	}
	if localFiles != nil {
		deps.Files = localFiles
	}
	httpRouter.Router(app, deps)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
