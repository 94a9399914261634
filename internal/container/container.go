package container

import (
	"context"
	"fmt"

	"tabprep/adapters/datareadiness"
	"tabprep/adapters/datareadiness/coercer"
	"tabprep/adapters/excel"
	"tabprep/adapters/memory"
	"tabprep/adapters/postgres"
	"tabprep/app"
	"tabprep/internal"
	"tabprep/internal/config"
	"tabprep/internal/dataset"
	"tabprep/internal/errors"
	"tabprep/internal/migration"
	"tabprep/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB    *sqlx.DB
	Codec *excel.Codec
	Files *dataset.LocalFileStorage
	Store ports.DatasetStore

	// Engine stages
	Profiler    *datareadiness.ProfilerAdapter
	Recommender *datareadiness.Recommender
	Executor    *datareadiness.Executor
	Versions    *app.VersionManager

	Service *app.PreprocessingService
}

// New creates a container backed by the in-memory dataset store. Call
// InitWithDatabase to switch to postgres.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	codecConfig := excel.DefaultCodecConfig()
	if cfg.Storage.SheetName != "" {
		codecConfig.SheetName = cfg.Storage.SheetName
	}
	codec := excel.NewCodec(codecConfig)

	storageConfig := dataset.DefaultStorageConfig()
	storageConfig.UploadDir = cfg.Storage.UploadDir
	storageConfig.ProcessedDir = cfg.Storage.ProcessedDir
	storageConfig.MaxFileSize = cfg.Storage.MaxUploadSize

	typeCoercer := coercer.NewTypeCoercer(coercer.DefaultCoercionConfig())

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Codec:       codec,
		Files:       dataset.NewLocalFileStorage(storageConfig, codec),
		Profiler:    datareadiness.NewProfilerAdapter(typeCoercer, cfg.Engine),
		Recommender: datareadiness.NewRecommender(cfg.Engine),
		Executor:    datareadiness.NewExecutor(typeCoercer, cfg.Engine),
	}

	c.useStore(memory.NewDatasetStore(c.Files))
	return c, nil
}

// InitWithDatabase migrates the schema and moves the dataset store to postgres
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	if err := db.PingContext(ctx); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "database connection test failed"))
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	c.useStore(postgres.NewDatasetStore(db, c.Files))
	c.Logger.Debug("Container initialized with database connection")
	return nil
}

func (c *Container) useStore(store ports.DatasetStore) {
	c.Store = store
	c.Versions = app.NewVersionManager(store, c.Files, c.Logger)
	c.Service = app.NewPreprocessingService(
		store,
		c.Files,
		c.Profiler,
		c.Recommender,
		c.Executor,
		c.Versions,
		c.Config.Preview.Rows,
		c.Logger,
	)
}

// Connect opens a pooled postgres connection from the database config
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to connect to database"))
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Shutdown releases the database connection if one is open
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
