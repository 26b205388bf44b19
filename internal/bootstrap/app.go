package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/locvowork/sheetstream/internal/config"
	"github.com/locvowork/sheetstream/internal/database"
	"github.com/locvowork/sheetstream/internal/handler"
	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/internal/service"
	"github.com/locvowork/sheetstream/pkg/dataflow"
	"github.com/locvowork/sheetstream/pkg/s3upload"
	"github.com/locvowork/sheetstream/pkg/sqlsource"
)

type App struct {
	Echo     *echo.Echo
	DB       *sql.DB
	Pool     *dataflow.Pool
	Settings service.ExportSettings
}

func NewApp() *App {
	return &App{
		Echo: echo.New(),
	}
}

// Initialize loads configuration and logging and builds the export settings
// shared by the server and the CLI.
func (a *App) Initialize(ctx context.Context) error {
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	logger.InitLogging(cfg.LOG_FILE_PATH)
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	a.Settings = service.ExportSettings{
		QueueCapacity: cfg.EXPORT_QUEUE_CAPACITY,
		ChunkCapacity: cfg.EXPORT_CHUNK_CAPACITY,
		FixedTitles:   cfg.EXPORT_FIXED_TITLES,
		TempDir:       cfg.EXPORT_TEMP_DIR,
		Timeout:       cfg.EXPORT_TIMEOUT,
		Logger:        logger.Component("excelstream"),
	}
	if cfg.EXPORT_STYLE_FILE != "" {
		if err := a.Settings.LoadStyleFile(cfg.EXPORT_STYLE_FILE); err != nil {
			return err
		}
	}
	if cfg.EXPORT_WORKERS > 0 {
		a.Pool = dataflow.NewPool(context.Background(),
			dataflow.WithWorkers(cfg.EXPORT_WORKERS),
			dataflow.WithLogger(logger.Component("dataflow")))
		a.Settings.Pool = a.Pool
	}
	if cfg.S3_BUCKET != "" {
		up, err := s3upload.NewFromDefaultConfig(ctx, cfg.S3_REGION, cfg.S3_BUCKET, cfg.S3_PREFIX,
			s3upload.WithLogger(logger.Component("s3upload")))
		if err != nil {
			return fmt.Errorf("failed to initialize s3 uploader: %w", err)
		}
		a.Settings.Upload = up.ChunkCallback()
		logger.InfoLog(ctx, "Uploading chunks to s3://%s/%s", cfg.S3_BUCKET, cfg.S3_PREFIX)
	}
	return nil
}

// InitializeServer additionally connects to the database when reports are
// configured and registers the HTTP routes.
func (a *App) InitializeServer(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	cfg := config.DefaultEnvConfig

	var reportHandler *handler.ReportHandler
	if cfg.REPORTS_FILE != "" {
		reports, err := config.LoadReports(cfg.REPORTS_FILE)
		if err != nil {
			return err
		}

		dbConfig := database.Config{
			Host:            cfg.DB_HOST,
			Port:            cfg.DB_PORT,
			User:            cfg.DB_USER,
			Password:        cfg.DB_PASSWORD,
			DBName:          cfg.DB_NAME,
			SSLMode:         cfg.DB_SSL_MODE,
			MaxOpenConns:    cfg.DB_MAX_OPEN_CONNS,
			MaxIdleConns:    cfg.DB_MAX_IDLE_CONNS,
			ConnMaxLifetime: cfg.DB_CONN_MAX_LIFETIME,
		}
		db, err := database.NewPostgresDB(ctx, dbConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = db
		logger.InfoLog(ctx, "Loaded %d reports from %s", len(reports), cfg.REPORTS_FILE)

		reportSvc := service.NewReportService(sqlsource.FromDB(db), reports, a.Settings)
		reportHandler = handler.NewReportHandler(reportSvc)
	}

	convertHandler := handler.NewConvertHandler(service.NewSplitService(a.Settings), cfg.EXPORT_TEMP_DIR)

	a.RegisterMiddlewares()
	a.RegisterRoutes(convertHandler, reportHandler)
	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORS())
}

func (a *App) RegisterRoutes(convertHandler *handler.ConvertHandler, reportHandler *handler.ReportHandler) {
	a.Echo.GET("/healthz", handler.HealthHandler)
	a.Echo.POST("/convert", convertHandler.ConvertHandler)

	if reportHandler != nil {
		reportGroup := a.Echo.Group("/reports")
		reportGroup.GET("", reportHandler.ListHandler)
		reportGroup.GET("/:name", reportHandler.ExportHandler)
	}
}

// Close releases the worker pool and the database.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func (a *App) Run() error {
	defer a.Close()
	return a.Echo.Start(":" + config.DefaultEnvConfig.APP_PORT)
}
