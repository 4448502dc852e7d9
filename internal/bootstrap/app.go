// Package bootstrap wires configuration into stores, providers, services and
// the HTTP router.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"askmydocs-backend/internal/documents"
	"askmydocs-backend/internal/extract"
	"askmydocs-backend/internal/functions"
	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/llm/gemini"
	"askmydocs-backend/internal/llm/openai"
	"askmydocs-backend/internal/ocr"
	"askmydocs-backend/internal/services/health"
	"askmydocs-backend/internal/share"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/config"
	"askmydocs-backend/internal/shared/server"
	"askmydocs-backend/internal/shared/storage/db"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/shared/storage/object/gcs"
	localstore "askmydocs-backend/internal/shared/storage/object/local"
	s3store "askmydocs-backend/internal/shared/storage/object/s3"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/transcribe"
	"askmydocs-backend/internal/uploads"
	"askmydocs-backend/internal/usage"
)

const (
	devJWTSecret     = "dev-jwt-secret"
	devSigningSecret = "dev-signing-secret"
)

// App holds shared dependencies and the router built from them.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *goredis.Client

	Docs   object.Store
	Shares object.Store

	Verifier    auth.Verifier
	LLM         llm.Generator
	Transcriber transcribe.Transcriber
	OCR         ocr.OCR

	UsageService     *usage.Service
	DocumentsService *documents.Service
	Publisher        *share.Publisher
	Health           *health.Service

	DocumentsHandler *documents.Handler
	UploadsHandler   *uploads.Handler
	UsageHandler     *usage.Handler
	FunctionsHandler *functions.Handler

	closers []io.Closer
}

// Close releases provider clients and connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if cfg.ObjectStoreType == "local" && strings.TrimSpace(cfg.SigningSecret) == "" {
		if !cfg.IsDevLike() {
			return nil, fmt.Errorf("SIGNING_SECRET is required for the local object store")
		}
		telemetry.Warn("bootstrap.dev_signing_secret", nil)
		cfg.SigningSecret = devSigningSecret
	}
	ctx := context.Background()
	app := &App{Config: cfg, Health: health.NewService()}

	steps := []func(context.Context) error{
		app.buildDB,
		app.buildVerifier,
		app.buildStores,
		app.buildUsage,
		app.buildProviders,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	app.buildServices()

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"auth_mode":    cfg.AuthMode,
		"llm":          cfg.LLMProvider,
		"has_db":       app.DB != nil,
		"has_redis":    app.Redis != nil,
	})
	return app, nil
}

func (a *App) buildDB(ctx context.Context) error {
	cfg := a.Config
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.no_database", map[string]any{"fallback": "memory"})
			return nil
		}
		return fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"err": err.Error(), "fallback": "memory"})
			return nil
		}
		return err
	}
	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	if !db.IsLambdaRuntime() {
		a.closers = append(a.closers, sqlDB)
	}
	a.DB = sqlDB
	a.Health.Register("database", sqlDB.PingContext)
	a.Health.Register("schema", func(ctx context.Context) error {
		return db.CheckSchema(ctx, sqlDB)
	})
	return nil
}

func (a *App) buildVerifier(ctx context.Context) error {
	cfg := a.Config
	switch cfg.AuthMode {
	case "remote":
		v, err := auth.NewRemoteVerifier(cfg.AuthURL, cfg.PublicAPIKey)
		if err != nil {
			return err
		}
		a.Verifier = v
	default:
		secret := cfg.AuthJWTSecret
		if strings.TrimSpace(secret) == "" {
			if !cfg.IsDevLike() {
				return fmt.Errorf("AUTH_JWT_SECRET is required")
			}
			telemetry.Warn("bootstrap.dev_jwt_secret", nil)
			secret = devJWTSecret
		}
		v, err := auth.NewJWTVerifier(secret)
		if err != nil {
			return err
		}
		a.Verifier = v
	}
	return nil
}

func (a *App) buildStores(ctx context.Context) error {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		docs, err := s3store.New(ctx, s3Options(cfg, cfg.DocsBucket))
		if err != nil {
			return fmt.Errorf("docs bucket: %w", err)
		}
		shares, err := s3store.New(ctx, s3Options(cfg, cfg.SharesBucket))
		if err != nil {
			return fmt.Errorf("shares bucket: %w", err)
		}
		a.Docs, a.Shares = docs, shares
	case "gcs":
		docs, err := gcs.New(ctx, gcs.Options{Bucket: cfg.DocsBucket, Prefix: cfg.S3Prefix})
		if err != nil {
			return fmt.Errorf("docs bucket: %w", err)
		}
		a.closers = append(a.closers, docs)
		shares, err := gcs.New(ctx, gcs.Options{Bucket: cfg.SharesBucket})
		if err != nil {
			return fmt.Errorf("shares bucket: %w", err)
		}
		a.closers = append(a.closers, shares)
		a.Docs, a.Shares = docs, shares
	default:
		a.Docs = localstore.New(filepath.Join(cfg.LocalStoreDir, cfg.DocsBucket), localstore.Options{
			BaseURL: cfg.PublicBaseURL,
			Route:   "/files",
			Secret:  cfg.SigningSecret,
		})
		a.Shares = localstore.New(filepath.Join(cfg.LocalStoreDir, cfg.SharesBucket), localstore.Options{
			BaseURL: cfg.PublicBaseURL,
			Route:   "/public",
		})
	}
	return nil
}

func s3Options(cfg config.Config, bucket string) s3store.Options {
	return s3store.Options{
		Region:          cfg.AWSRegion,
		Bucket:          bucket,
		Prefix:          cfg.S3Prefix,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
	}
}

func (a *App) buildUsage(ctx context.Context) error {
	cfg := a.Config
	limits := usage.Limits{
		usage.KindSummary:  cfg.SummaryDailyLimit,
		usage.KindQuestion: cfg.QuestionDailyLimit,
	}

	mode := cfg.UsageStore
	if mode == "auto" {
		switch {
		case cfg.RedisURL != "":
			mode = "redis"
		case a.DB != nil:
			mode = "postgres"
		default:
			mode = "memory"
		}
	}

	var store usage.Store
	switch mode {
	case "redis":
		rdb, err := usage.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevLike() {
				return fmt.Errorf("usage redis: %w", err)
			}
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"err": err.Error(), "fallback": "memory"})
			store = usage.NewMemoryStore()
			break
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb)
		a.Health.Register("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		store = usage.NewRedisStore(rdb)
	case "postgres":
		if a.DB == nil {
			if !cfg.IsDevLike() {
				return fmt.Errorf("USAGE_STORE=postgres requires DATABASE_URL")
			}
			store = usage.NewMemoryStore()
			break
		}
		store = usage.NewPGStore(a.DB)
	default:
		if !cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_usage_store", map[string]any{"env": cfg.Env})
		}
		store = usage.NewMemoryStore()
	}
	a.UsageService = usage.NewService(store, limits)
	return nil
}

func (a *App) buildProviders(ctx context.Context) error {
	cfg := a.Config

	a.LLM = llm.Disabled{}
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
			if err != nil {
				return fmt.Errorf("gemini client: %w", err)
			}
			a.closers = append(a.closers, client)
			a.LLM = client
		}
	default:
		if cfg.OpenAIAPIKey != "" {
			client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL)
			if err != nil {
				return err
			}
			a.LLM = client
		}
	}

	a.Transcriber = transcribe.Disabled{}
	switch cfg.TranscribeProvider {
	case "speech":
		client, err := transcribe.NewSpeech(ctx)
		if err != nil {
			if !cfg.IsDevLike() {
				return fmt.Errorf("speech client: %w", err)
			}
			telemetry.Warn("bootstrap.speech_unavailable", map[string]any{"err": err.Error()})
			break
		}
		a.closers = append(a.closers, client)
		a.Transcriber = client
	default:
		if cfg.OpenAIAPIKey != "" {
			client, err := transcribe.NewOpenAI(cfg.OpenAIAPIKey, cfg.TranscribeModel, cfg.OpenAIBaseURL, openai.TimeoutFromEnv())
			if err != nil {
				return err
			}
			a.Transcriber = client
		}
	}

	a.OCR = ocr.Disabled{}
	if cfg.OCRProvider == "vision" {
		client, err := ocr.NewVision(ctx)
		if err != nil {
			if !cfg.IsDevLike() {
				return fmt.Errorf("vision client: %w", err)
			}
			telemetry.Warn("bootstrap.vision_unavailable", map[string]any{"err": err.Error()})
		} else {
			a.closers = append(a.closers, client)
			a.OCR = client
		}
	}
	return nil
}

func (a *App) buildServices() {
	var repo documents.Repo = documents.NewMemoryRepo()
	if a.DB != nil {
		repo = &documents.PGRepo{DB: a.DB}
	}

	extractor := extract.New(a.Docs, a.OCR, a.Transcriber)
	a.DocumentsService = documents.NewService(a.Docs, repo, extractor, a.UsageService, a.LLM, a.Config.SignedURLTTL)
	a.Publisher = share.NewPublisher(a.Shares)

	a.DocumentsHandler = documents.NewHandler(a.DocumentsService)
	a.UploadsHandler = uploads.NewHandler(a.DocumentsService)
	a.UsageHandler = usage.NewHandler(a.UsageService)
	a.FunctionsHandler = functions.NewHandler(a.LLM, a.Transcriber, a.UsageService, a.Publisher)

	deps := server.RouterDeps{
		Config:          a.Config,
		Verifier:        a.Verifier,
		Health:          a.Health,
		DocumentHandler: a.DocumentsHandler,
		UploadHandler:   a.UploadsHandler,
		UsageHandler:    a.UsageHandler,
		FunctionHandler: a.FunctionsHandler,
	}
	if files, ok := a.Docs.(*localstore.Store); ok {
		deps.Files = files.SignedHandler()
	}
	if pages, ok := a.Shares.(*localstore.Store); ok {
		deps.Shares = pages.PublicHandler()
	}
	a.Router = server.NewRouter(deps)
}
