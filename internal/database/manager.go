package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minhvu-dev/cardiopredict/internal/models"
)

// Database connection manager
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

// NewManager creates a new database manager with connection pooling
func NewManager(config *Config, log *logrus.Logger) (*Manager, error) {
	// Configure GORM logger
	gormLogLevel := logger.Silent
	if config.LogLevel == "debug" {
		gormLogLevel = logger.Info
	}

	// Open database connection with pooling
	db, err := gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{
		Logger:                 logger.Default.LogMode(gormLogLevel),
		SkipDefaultTransaction: true, // Improve performance
		PrepareStmt:            true, // Cache prepared statements
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Test database connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connect to Redis
	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.PoolSize = 20
	redisOpts.MinIdleConns = 5
	redisOpts.MaxConnAge = time.Hour
	redisOpts.IdleTimeout = 30 * time.Minute
	redisOpts.IdleCheckFrequency = 30 * time.Second

	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Database and Redis connections established successfully")

	return &Manager{
		DB:     db,
		Redis:  redisClient,
		logger: log,
	}, nil
}

// Migrate runs database migrations. The two examination tables share one
// struct, so they are migrated per table name.
func (m *Manager) Migrate() error {
	m.logger.Info("Running database migrations...")

	if err := m.DB.AutoMigrate(
		&models.Patient{},
		&models.SystemHealth{},
	); err != nil {
		return err
	}

	for _, space := range models.AllSpaces() {
		table := models.ExaminationTable(space.Name)
		if err := m.DB.Table(table).AutoMigrate(&models.Examination{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
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
func (m *Manager) PingDatabase() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *Manager) PingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	ComparisonKey    = "predict:compare:%s:%s"
	TrainingStatsKey = "training:stats:%s"
	SystemHealthKey  = "system:health"
)

// CacheComparison caches a compare-all response keyed by space and a hash
// of the input features.
func (c *Cache) CacheComparison(ctx context.Context, space, featureHash string, response interface{}, expiration time.Duration) error {
	key := fmt.Sprintf(ComparisonKey, space, featureHash)

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal comparison: %w", err)
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetCachedComparison retrieves a cached compare-all response
func (c *Cache) GetCachedComparison(ctx context.Context, space, featureHash string, result interface{}) error {
	key := fmt.Sprintf(ComparisonKey, space, featureHash)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// CacheTrainingStats caches a training stats snapshot for a space
func (c *Cache) CacheTrainingStats(ctx context.Context, space string, stats *models.TrainingStats, expiration time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal training stats: %w", err)
	}

	return c.client.Set(ctx, fmt.Sprintf(TrainingStatsKey, space), data, expiration).Err()
}

// GetCachedTrainingStats retrieves a cached training stats snapshot
func (c *Cache) GetCachedTrainingStats(ctx context.Context, space string) (*models.TrainingStats, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(TrainingStatsKey, space)).Result()
	if err != nil {
		return nil, err
	}

	var stats models.TrainingStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// InvalidateTrainingStats removes a space's cached stats snapshot. Called
// after any lifecycle mutation so stale counts never outlive a write.
func (c *Cache) InvalidateTrainingStats(ctx context.Context, space string) error {
	return c.client.Del(ctx, fmt.Sprintf(TrainingStatsKey, space)).Err()
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	data, err := c.client.Get(ctx, SystemHealthKey).Result()
	if err != nil {
		return nil, err
	}

	var health []models.SystemHealth
	err = json.Unmarshal([]byte(data), &health)
	return health, err
}

// ClearAllCache clears all cache data
func (c *Cache) ClearAllCache(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// Cache statistics
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	info := c.client.Info(ctx, "stats").Val()

	stats := map[string]interface{}{
		"keyspace_hits":     c.extractStat(info, "keyspace_hits"),
		"keyspace_misses":   c.extractStat(info, "keyspace_misses"),
		"used_memory":       c.extractStat(info, "used_memory"),
		"connected_clients": c.extractStat(info, "connected_clients"),
	}

	return stats, nil
}

func (c *Cache) extractStat(info, key string) string {
	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
