package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appControllers "github.com/sga/schoolhub/internal/app/controllers"
	appMigrations "github.com/sga/schoolhub/internal/app/migrations"
	appRepos "github.com/sga/schoolhub/internal/app/repositories"
	appRoutes "github.com/sga/schoolhub/internal/app/routes"
	appServices "github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/config"
	"github.com/sga/schoolhub/internal/db"
	appMiddleware "github.com/sga/schoolhub/internal/middleware"
	pkgAuth "github.com/sga/schoolhub/internal/pkg/auth"
	"github.com/sga/schoolhub/internal/pkg/filestorage"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/logger"
	"github.com/sga/schoolhub/internal/pkg/validation"
	"github.com/sga/schoolhub/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos          *appRepos.Repositories
	JWTService     *pkgAuth.JWTService
	FileStorage    *filestorage.LocalStorage
	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.FromSettings(cfg.Logging.Level, cfg.Logging.Format))
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection, applies migrations and
// seeds the administrator account.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	pg, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		pg.Close()
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Str("path", migrationsDir).Msg("Running database migrations...")
	if err := appMigrations.NewMigrator(pg.Pool, lgr).MigrateFromDirectory(ctx, migrationsDir); err != nil {
		pg.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if cfg.Seed.Enabled {
		admin := seed.AdminAccount{
			Email:    cfg.Seed.AdminEmail,
			Username: cfg.Seed.AdminUsername,
			Password: cfg.Seed.AdminPassword,
		}
		if err := seed.CreateDefaultAdmin(ctx, appRepos.NewUserRepository(pg), admin, lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create default admin, proceeding anyway...")
		}
	}

	return pg, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, pg *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}
	deps.Repos = appRepos.NewRepositories(pg)
	repos := deps.Repos

	var err error
	deps.FileStorage, err = filestorage.NewLocalStorage(cfg.Server.StoragePath, cfg.Server.PublicBaseURL)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 720*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	settings := appServices.SchoolSettings{
		ReceiptPrefix:    cfg.School.ReceiptPrefix,
		StudentIDPrefix:  cfg.School.StudentIDPrefix,
		PendingTolerance: cfg.School.PendingTolerance,
		FeeWindowDays:    cfg.School.FeeWindowDays,
		UsernameDomain:   cfg.School.UsernameDomain,
	}
	purger := appServices.NewAccountPurger(repos.UserRepository, repos.TokenRepository, repos.ChatRepository)

	authService := appServices.NewAuthService(repos.UserRepository, repos.TokenRepository, deps.JWTService, lgr)
	userService := appServices.NewUserService(repos.UserRepository, repos.BatchRepository, purger, pg, lgr)
	batchService := appServices.NewBatchService(
		repos.BatchRepository,
		repos.StudentRepository,
		repos.FeeStructureRepository,
		repos.UserRepository,
		pg,
		lgr,
	)
	studentService := appServices.NewStudentService(
		repos.StudentRepository,
		repos.BatchRepository,
		repos.AttendanceRepository,
		repos.FeeTransactionRepository,
		repos.FeeDueRepository,
		repos.SequenceRepository,
		purger,
		pg,
		settings,
		lgr,
	)
	attendanceService := appServices.NewAttendanceService(repos.AttendanceRepository, repos.StudentRepository, repos.BatchRepository, pg, lgr)
	feeService := appServices.NewFeeService(
		repos.FeeStructureRepository,
		repos.FeeTransactionRepository,
		repos.FeeDueRepository,
		repos.StudentRepository,
		repos.SequenceRepository,
		pg,
		settings,
		lgr,
	)
	chatService := appServices.NewChatService(repos.ChatRepository, repos.UserRepository, pg, lgr)
	announcementService := appServices.NewAnnouncementService(repos.AnnouncementRepository, repos.StudentRepository, deps.FileStorage, lgr)
	portalService := appServices.NewPortalService(
		repos.StudentRepository,
		repos.AttendanceRepository,
		repos.FeeTransactionRepository,
		announcementService,
		settings,
		lgr,
	)

	dashboardService := appServices.NewDashboardService(
		repos.StudentRepository,
		repos.BatchRepository,
		repos.UserRepository,
		repos.AttendanceRepository,
		repos.FeeTransactionRepository,
		lgr,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, repos.UserRepository)

	deps.Controllers = appRoutes.Controllers{
		Auth:         appControllers.NewAuthController(authService, lgr),
		User:         appControllers.NewUserController(userService, lgr),
		Batch:        appControllers.NewBatchController(batchService, lgr),
		Student:      appControllers.NewStudentController(studentService, lgr),
		Attendance:   appControllers.NewAttendanceController(attendanceService, lgr),
		Fee:          appControllers.NewFeeController(feeService, cfg.School.CurrencySymbol, lgr),
		Chat:         appControllers.NewChatController(chatService, lgr),
		Announcement: appControllers.NewAnnouncementController(announcementService, lgr),
		Portal:       appControllers.NewPortalController(portalService, lgr),
		Dashboard:    appControllers.NewDashboardController(dashboardService, lgr),
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	if err := validation.RegisterWithGin(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(lgr))

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)

	return router, nil
}
