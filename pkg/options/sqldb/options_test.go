package sqldb

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	o := NewOptions()
	o.Username, o.Password, o.Database = "u", "p", "hr"
	assert.Equal(t, "u:p@tcp(127.0.0.1:3306)/hr?charset=utf8mb4&parseTime=true&loc=UTC", o.DSN())

	o.Driver = DriverPostgres
	require.NoError(t, o.Complete())
	assert.Contains(t, o.DSN(), "port=5432")
	assert.Contains(t, o.DSN(), "dbname=hr")

	o.Driver, o.Path = DriverSQLite, ":memory:"
	assert.Equal(t, ":memory:", o.DSN())
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	assert.Len(t, o.Validate(), 1, "database name missing")

	o.Driver = "oracle"
	assert.Len(t, o.Validate(), 1)

	o.Driver = DriverSQLite
	assert.Empty(t, o.Validate())
}

func TestPrefixedFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs, "sqlagent")
	require.NoError(t, fs.Parse([]string{"--sqlagent.driver=sqlite", "--sqlagent.path=/tmp/x.db"}))
	assert.Equal(t, "/tmp/x.db", o.DSN())
	assert.NotContains(t, NewOptions().String(), "secret")
}
