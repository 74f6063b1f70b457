package docqa

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexOptions(t *testing.T) {
	o := NewIndexOptions()
	assert.Empty(t, o.Validate())

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--index.extensions=MD,txt", "--index.backend=Milvus", "--index.top-k=3"}))
	require.NoError(t, o.Complete())
	assert.Equal(t, []string{".md", ".txt"}, o.Extensions)
	assert.Equal(t, BackendMilvus, o.Backend)
	assert.Equal(t, 3, o.TopK)
	assert.Empty(t, o.Validate())

	o.Overlap = o.ChunkSize
	o.Backend = "faiss"
	assert.Len(t, o.Validate(), 2)
}

func TestAssistantOptions_RetryPolicy(t *testing.T) {
	o := NewAssistantOptions()
	assert.Empty(t, o.Validate())

	p := o.RetryPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 60*time.Second, p.AttemptTimeout)

	o.GenerationRetries = 0
	o.GenerationTimeout = time.Second
	p = o.RetryPolicy()
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, time.Second, p.AttemptTimeout)

	o.HistoryContext = o.MemorySize + 1
	assert.Len(t, o.Validate(), 1)
}

func TestSessionOptions(t *testing.T) {
	o := NewSessionOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 30*24*time.Hour, o.Retention)

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--session.backend=SQL", "--session.sql.path=/tmp/s.db"}))
	require.NoError(t, o.Complete())
	assert.Equal(t, SessionBackendSQL, o.Backend)
	assert.Equal(t, "/tmp/s.db", o.SQL.DSN())
	assert.Empty(t, o.Validate())

	o.Backend = "etcd"
	assert.Len(t, o.Validate(), 1)
}

func TestSQLAgentOptions(t *testing.T) {
	o := NewSQLAgentOptions()
	// 未启用时不校验连接参数
	assert.Empty(t, o.Validate())

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--sql-agent.enabled", "--sql-agent.db.driver=sqlite", "--sql-agent.db.path=hr.db"}))
	require.NoError(t, o.Complete())
	assert.True(t, o.Enabled)
	assert.Empty(t, o.Validate())

	o.MaxRows = 0
	assert.Len(t, o.Validate(), 1)
}
