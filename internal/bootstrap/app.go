// Package bootstrap wires the application graph shared by the API server,
// the pipeline worker, and the Lambda entry points.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"library-backend/internal/documents"
	"library-backend/internal/embeddings"
	"library-backend/internal/llm"
	openai "library-backend/internal/llm/openai"
	"library-backend/internal/pipeline"
	"library-backend/internal/processing"
	"library-backend/internal/queue"
	"library-backend/internal/review"
	"library-backend/internal/scheduler"
	"library-backend/internal/shared/config"
	"library-backend/internal/shared/server"
	"library-backend/internal/shared/storage/db"
	"library-backend/internal/shared/storage/object"
	localstore "library-backend/internal/shared/storage/object/local"
	s3store "library-backend/internal/shared/storage/object/s3"
	"library-backend/internal/workflow"
)

// App holds shared dependencies for all entry points.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	ProcessingRepo processing.Repo
	DocumentsRepo  documents.DocumentsRepo

	Engine            *workflow.Engine
	ProcessingService *processing.Service
	DocumentsService  *documents.Service
	ReviewService     *review.Service

	Processor  *pipeline.Processor
	Dispatcher *scheduler.Dispatcher

	ProcessingHandler *processing.Handler
	DocumentsHandler  *documents.Handler
	ReviewHandler     *review.Handler
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		ProcessingHandler: app.ProcessingHandler,
		DocumentsHandler:  app.DocumentsHandler,
		ReviewHandler:     app.ReviewHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var procRepo processing.Repo
	var docRepo documents.DocumentsRepo

	if app.DB != nil {
		procRepo = &processing.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
	} else {
		procRepo = processing.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
	}

	docSvc := documents.NewService(docRepo)
	engine := workflow.NewEngine(&processing.Store{Repo: procRepo}, docSvc)

	procSvc := processing.NewService(procRepo, engine, app.Store, app.Queue, docSvc)
	if app.Config.MaxFileBytes > 0 {
		procSvc.MaxFileBytes = app.Config.MaxFileBytes
	}
	if app.Config.MaxBatchFiles > 0 {
		procSvc.MaxBatchFiles = app.Config.MaxBatchFiles
	}

	llmClient, err := buildLLM(app.Config)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(app.Config)
	if err != nil {
		return err
	}
	chunker := embeddings.NewChunker(app.Config.ChunkSize, app.Config.ChunkOverlap, app.Config.MaxChunks)

	app.ProcessingRepo = procRepo
	app.DocumentsRepo = docRepo
	app.Engine = engine
	app.ProcessingService = procSvc
	app.DocumentsService = docSvc
	app.ReviewService = review.NewService(procRepo, engine)

	app.Processor = pipeline.NewProcessor(procRepo, engine, app.Store, llmClient, embedder, chunker, docSvc)
	app.Dispatcher = scheduler.NewDispatcher(procRepo, procSvc)

	app.ProcessingHandler = processing.NewHandler(procSvc)
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ReviewHandler = review.NewHandler(app.ReviewService)

	if app.ProcessingHandler == nil || app.DocumentsHandler == nil || app.ReviewHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" {
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient()
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: openai client unavailable; metadata analysis disabled: %v", err)
			return llm.PlaceholderClient{}, nil
		}
		return nil, err
	}
	return client, nil
}

func buildEmbedder(cfg config.Config) (embeddings.Embedder, error) {
	client, err := embeddings.NewOpenAIClient()
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: embeddings client unavailable; embedding stage disabled: %v", err)
			return unavailableEmbedder{}, nil
		}
		return nil, err
	}
	return client, nil
}

// unavailableEmbedder stands in when no embedding provider is configured.
// Files reach the embedding stage and fail into the retry path instead of
// crashing the worker.
type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("embedding provider not configured")
}
