package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestNewManager_NothingConfigured(t *testing.T) {
	logger, _ := test.NewNullLogger()

	m, err := NewManager(&Config{}, logger)
	require.NoError(t, err)

	assert.False(t, m.HasDatabase())
	assert.False(t, m.HasRedis())
	assert.NoError(t, m.Migrate())
	assert.ErrorIs(t, m.PingDatabase(context.Background()), ErrNotConfigured)
	assert.ErrorIs(t, m.PingRedis(context.Background()), ErrNotConfigured)
	assert.NoError(t, m.Close())
}

func TestNewManager_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()

	m, err := NewManager(&Config{RedisURL: "redis://" + mr.Addr()}, logger)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.HasRedis())
	assert.NoError(t, m.PingRedis(context.Background()))
}

func TestNewManager_ReportsFailures(t *testing.T) {
	logger, _ := test.NewNullLogger()

	m, err := NewManager(&Config{RedisURL: "not a url"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis URL")
	require.NotNil(t, m)
	assert.False(t, m.HasRedis())
}

func TestManager_PingDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	m := NewManagerFrom(db, nil, logger)

	mock.ExpectPing()
	assert.NoError(t, m.PingDatabase(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection reset"))
	assert.Error(t, m.PingDatabase(context.Background()))
}

func TestManager_PingRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	logger, _ := test.NewNullLogger()
	m := NewManagerFrom(nil, client, logger)

	require.NoError(t, m.PingRedis(context.Background()))

	mr.SetError("LOADING")
	assert.Error(t, m.PingRedis(context.Background()))
	assert.NoError(t, m.Close())
}
