package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/conference-cms/internal/config"
)

func TestDSN_DiscreteFields(t *testing.T) {
	dsn, err := DSN(config.Config{DBUser: "cms", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "conference"})
	require.NoError(t, err)

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "cms", mc.User)
	assert.Equal(t, "pw", mc.Passwd)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "conference", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.True(t, mc.ClientFoundRows)
}

func TestDSN_FromURL(t *testing.T) {
	dsn, err := DSN(config.Config{DatabaseURL: "mysql://cms:pw@db.internal:3307/conference"})
	require.NoError(t, err)

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "cms", mc.User)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "conference", mc.DBName)
	assert.True(t, mc.ParseTime)
}

func TestDSN_RejectsOtherDrivers(t *testing.T) {
	_, err := DSN(config.Config{DatabaseURL: "postgres://u:p@localhost/db"})
	assert.Error(t, err)
}
