package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 连接池测试
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})
	// gorm.Open issues an automatic ping, which the mock monitors.
	mock.ExpectPing()
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func testConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		// 测试中关闭后台健康检查
		HealthCheckInterval: 0,
	}
}

func TestNewPool(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, pool)
	assert.Equal(t, gormDB, pool.DB())

	stats := pool.Stats()
	assert.Equal(t, 10, stats.MaxOpenConnections)
}

func TestNewPool_NilDB(t *testing.T) {
	_, err := NewPool(nil, testConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPool_Ping(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()

	assert.NoError(t, pool.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_PingFailed(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	assert.Error(t, pool.Ping(context.Background()))
}

func TestPool_WithTransaction(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransactionRollback(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Close(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)

	pool, err := NewPool(gormDB, testConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()

	assert.NoError(t, pool.Close())
	// 重复关闭幂等
	assert.NoError(t, pool.Close())

	assert.Error(t, pool.Ping(context.Background()))
	assert.Error(t, pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	}))
	_ = mockDB
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = ":memory:"
	cfg.HealthCheckInterval = 0

	pool, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	assert.NoError(t, pool.Ping(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"

	_, err := Open(cfg, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDialectorFor_Defaults(t *testing.T) {
	d, err := dialectorFor(Config{Driver: "", DSN: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(Config{Driver: "postgresql"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
