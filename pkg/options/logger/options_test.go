package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=console"}))
	require.NoError(t, o.Complete())

	assert.Equal(t, "DEBUG", o.Level)
	assert.Equal(t, "console", o.Format)
	assert.Empty(t, o.Validate())
}

func TestReloadLevel(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Init())

	v := viper.New()
	v.Set("log.level", "warn")
	require.NoError(t, o.ReloadLevel(v))
	assert.Equal(t, "WARN", o.Level)

	v.Set("log.level", "loud")
	assert.Error(t, o.ReloadLevel(v))
	assert.Equal(t, "WARN", o.Level)
}
