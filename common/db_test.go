package common

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/config"
)

func TestMysqlAddressPinsUTC(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "server",
		DBPassword: "secret_app",
		DBHost:     "db",
		DBPort:     "3306",
		DBName:     "waterlog",
	}

	dsn, err := mysql.ParseDSN(mysqlAddress(cfg))
	require.NoError(t, err)
	assert.Equal(t, "db:3306", dsn.Addr)
	assert.Equal(t, "waterlog", dsn.DBName)
	assert.True(t, dsn.ParseTime)
	assert.Equal(t, time.UTC, dsn.Loc)
	assert.Equal(t, "'+00:00'", dsn.Params["time_zone"])
}
