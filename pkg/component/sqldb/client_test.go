package sqldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/docqa/pkg/options/sqldb"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = options.DriverSQLite
	opts.Path = ":memory:"

	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sqlite", c.Name())
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.DB().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, c.DB().Exec("INSERT INTO t (name) VALUES (?)", "a").Error)

	var n int64
	require.NoError(t, c.DB().Table("t").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestUnsupportedDriver(t *testing.T) {
	opts := options.NewOptions()
	opts.Driver = "oracle"
	_, err := New(context.Background(), opts)
	assert.Error(t, err)
}
