package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/consultation"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/reporting"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(clinicCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openPool loads the configuration and connects to Postgres. The caller closes
// the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// targetSchema resolves the --clinic flag, falling back to the configured
// default clinic.
func targetSchema(cmd *cobra.Command, cfg *config.Config) (string, error) {
	clinicID, _ := cmd.Flags().GetString("clinic")
	if clinicID == "" {
		clinicID = cfg.DefaultClinic
	}
	if !db.ValidClinicID(clinicID) {
		return "", fmt.Errorf("invalid clinic identifier: %s", clinicID)
	}
	return db.SchemaName(clinicID), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema, err := targetSchema(cmd, cfg)
			if err != nil {
				return err
			}
			if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
				return fmt.Errorf("create schema %s: %w", schema, err)
			}

			migrator := db.NewMigrator(pool, migrations.Schema)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema, err := targetSchema(cmd, cfg)
			if err != nil {
				return err
			}

			migrator := db.NewMigrator(pool, migrations.Schema)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference specialties, doctors and sample patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema, err := targetSchema(cmd, cfg)
			if err != nil {
				return err
			}

			count, err := db.Seed(ctx, pool, schema, migrations.SeedData)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Printf("Loaded %d seed file(s) into %s.\n", count, schema)
			return nil
		},
	}
	cmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, migrations.Schema); err != nil {
				return err
			}
			fmt.Println("Clinic created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn().Err(err).Msg("event broker unreachable, events will be dropped")
		return events.NopPublisher{}
	}
	logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to amqp")
	return pub
}

// newServer assembles the HTTP surface. pool may be nil in tests that never
// reach a clinic route.
func newServer(cfg *config.Config, pool *pgxpool.Pool, pub events.Publisher, logger zerolog.Logger) (*echo.Echo, error) {
	var poolStats telemetry.PoolStatsFunc
	if pool != nil {
		poolStats = func() (int32, int32, int32) {
			s := pool.Stat()
			return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
		}
	}
	metrics, err := telemetry.NewProvider(poolStats)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	validator, err := validation.New(scheduling.StatusRule, consultation.PriorityRule)
	if err != nil {
		return nil, fmt.Errorf("init validator: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.ClinicHeader},
		ExposeHeaders: []string{"X-Total-Count", middleware.RequestIDHeader},
	}))
	e.Use(metrics.MetricsMiddleware())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.JWTSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	// Buckets are keyed on the clinic claim, so this runs after auth.
	e.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	}
	e.GET("/metrics", metrics.PrometheusHandler())
	e.GET("/api/test", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "API fonctionnelle"})
	})

	api := e.Group("/api", db.ClinicMiddleware(pool, cfg.DefaultClinic))

	emitter := events.NewEmitter(pub, logger)
	txRunner := db.NewTxRunner(pool)

	// Identity domain
	patientRepo := identity.NewPatientRepo(pool)
	doctorRepo := identity.NewDoctorRepo(pool)
	identitySvc := identity.NewService(patientRepo, identity.NewMedicalFileRepo(pool), doctorRepo,
		identity.NewSpecialtyRepo(pool), txRunner, emitter, logger)
	identity.NewHandler(identitySvc).RegisterRoutes(api)

	resolver := identity.NewResolver(patientRepo, doctorRepo, metrics, logger)

	// Scheduling domain
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), resolver, emitter,
		cfg.AppointmentDefaultDuration, logger)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	// Consultation domain
	classifier := consultation.NewClassifier(
		consultation.DefaultRules(cfg.PriorityUrgentKeywords, cfg.PriorityImportantKeywords), metrics)
	consultationSvc := consultation.NewService(consultation.NewConsultationRepo(pool), resolver, classifier, emitter, logger)
	consultation.NewHandler(consultationSvc).RegisterRoutes(api)

	// Statistics
	reportingSvc := reporting.NewService(reporting.NewEvaluator(pool), cfg.StatsCacheTTL, logger)
	reporting.NewHandler(reportingSvc).RegisterRoutes(api)

	return e, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logger
	logger := newLogger(cfg)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Events
	pub := newPublisher(cfg, logger)
	defer pub.Close()

	e, err := newServer(cfg, pool, pub, logger)
	if err != nil {
		return err
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting clinic API server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
