package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/batches"
	"vendorquery-backend/internal/blob"
	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/processing"
	"vendorquery-backend/internal/queue"
	"vendorquery-backend/internal/results"
	"vendorquery-backend/internal/services/health"
	"vendorquery-backend/internal/shared/config"
	"vendorquery-backend/internal/shared/server"
	"vendorquery-backend/internal/shared/storage/db"
	"vendorquery-backend/internal/shared/storage/object"
	localstore "vendorquery-backend/internal/shared/storage/object/local"
	miniostore "vendorquery-backend/internal/shared/storage/object/minio"
	s3store "vendorquery-backend/internal/shared/storage/object/s3"
	"vendorquery-backend/internal/uploads"
)

const rawKeyPrefix = "raw"

// App holds the wired pipeline and its HTTP surface.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	LocalStore   *localstore.Store
	Queue        queue.Client
	Jobs         jobs.Repo
	Annotations  results.AnnotationRepo
	Blobs        *blob.Client
	Uploads      *uploads.Service
	Invoker      *processing.Invoker
	Materializer *results.Materializer
	Results      *results.Service
	Supervisor   *batches.Supervisor
	Health       *health.Service
}

// Build wires every component from cfg and, when enabled, reconciles unfinished jobs
// whose owner stopped sending heartbeats.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, local, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		Store:      store,
		LocalStore: local,
		Queue:      queueClient,
	}
	buildServices(app)

	if sqlDB != nil && cfg.ReconcileOnStart {
		n, err := jobs.ReconcileUnfinished(ctx, app.Jobs, cfg.ReconcileStaleAfter, time.Now())
		if err != nil {
			return nil, err
		}
		if n > 0 {
			log.Printf("bootstrap: marked %d interrupted jobs as error", n)
		}
	}

	deps := server.RouterDeps{
		Config:  cfg,
		Health:  app.Health,
		Batches: batches.NewHandler(app.Supervisor),
		Results: results.NewHandler(app.Results),
	}
	if local != nil {
		deps.Blobs = localstore.NewHandler(local)
	}
	app.Router = server.NewRouter(deps)

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

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database unavailable; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, *localstore.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		return store, nil, err
	case "minio":
		store, err := miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.MinIOUseSSL,
		})
		return store, nil, err
	default:
		local := localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL+"/api/v1/blobs", []byte(cfg.BlobSigningKey))
		return local, local, nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.BatchQueueURL) == "" {
		return queue.NewMemoryClient(), nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.BatchQueueURL)
}

func buildServices(app *App) {
	cfg := app.Config
	if app.DB != nil {
		app.Jobs = &jobs.PGRepo{DB: app.DB}
		app.Annotations = &results.PGAnnotationRepo{DB: app.DB}
		app.Health = health.NewService(app.DB)
	} else {
		app.Jobs = jobs.NewMemoryRepo()
		app.Annotations = results.NewMemoryAnnotationRepo()
		app.Health = health.NewService(nil)
	}

	app.Blobs = blob.NewClient(app.Store, cfg.PresignExpiry)
	app.Uploads = uploads.NewService(app.Jobs, app.Blobs, rawKeyPrefix, cfg.UploadTimeout)

	remote := processing.NewHTTPClient(cfg.ExtractionURL, cfg.GenerationURL, cfg.ProcessingAPIKey)
	app.Invoker = processing.NewInvoker(app.Jobs, remote, remote, cfg.ExtractionTimeout, cfg.GenerationTimeout)

	app.Materializer = results.NewMaterializer(app.Jobs, app.Blobs, cfg.ArtifactTimeout)
	app.Results = &results.Service{Materializer: app.Materializer, Annotations: app.Annotations}

	app.Supervisor = batches.NewSupervisor(app.Jobs, app.Uploads, app.Invoker, app.Queue, cfg.MaxBatchFiles, cfg.PipelineConcurrency)
	app.Supervisor.MaxFileBytes = cfg.MaxFileBytes
	app.Supervisor.HeartbeatInterval = cfg.HeartbeatInterval
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
