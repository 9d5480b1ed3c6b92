package database

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// ErrNotConfigured is returned by pings against a connection that was never set up.
var ErrNotConfigured = errors.New("not configured")

// Manager owns the optional Postgres and Redis connections. Either may be nil:
// analytics and admission stats are switched off when their store is missing.
type Manager struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *logrus.Logger
}

// Database configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	LogLevel    string
}

// NewManager connects to whatever cfg names. The returned Manager is always
// usable; the error reports connections that were configured but failed.
func NewManager(cfg *Config, logger *logrus.Logger) (*Manager, error) {
	m := &Manager{logger: logger}
	var errs []error

	if cfg.DatabaseURL != "" {
		db, err := openPostgres(cfg.DatabaseURL, cfg.LogLevel, logger)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.DB = db
		}
	}

	if cfg.RedisURL != "" {
		client, err := openRedis(cfg.RedisURL)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Redis = client
		}
	}

	logger.WithFields(logrus.Fields{
		"postgres": m.HasDatabase(),
		"redis":    m.HasRedis(),
	}).Info("Storage connections initialised")

	return m, errors.Join(errs...)
}

// NewManagerFrom wraps existing connections.
func NewManagerFrom(db *gorm.DB, client *redis.Client, logger *logrus.Logger) *Manager {
	return &Manager{DB: db, Redis: client, logger: logger}
}

func openPostgres(url, level string, logger *logrus.Logger) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Silent)
	if level == "debug" {
		gormLogger = gormlogger.New(
			stdlog.New(logger.WriterLevel(logrus.DebugLevel), "", 0),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Info,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Writes are one row per request; a small pool is plenty.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxConnAge = time.Hour
	opts.IdleTimeout = 30 * time.Minute

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (m *Manager) HasDatabase() bool { return m != nil && m.DB != nil }

func (m *Manager) HasRedis() bool { return m != nil && m.Redis != nil }

// Migrate creates or updates the analytics tables. It is a no-op without Postgres.
func (m *Manager) Migrate() error {
	if !m.HasDatabase() {
		return nil
	}
	m.logger.Info("Running database migrations...")

	if err := m.DB.AutoMigrate(&models.InsightRequest{}); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// Close closes all database connections
func (m *Manager) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			m.logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	if m.DB != nil {
		sqlDB, err := m.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

// Health check methods
func (m *Manager) PingDatabase(ctx context.Context) error {
	if !m.HasDatabase() {
		return ErrNotConfigured
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (m *Manager) PingRedis(ctx context.Context) error {
	if !m.HasRedis() {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}
