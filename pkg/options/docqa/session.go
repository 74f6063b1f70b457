package docqa

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
	sqldbopts "github.com/kart-io/docqa/pkg/options/sqldb"
)

// 会话存储后端。
const (
	SessionBackendMemory  = "memory"
	SessionBackendRedis   = "redis"
	SessionBackendMongoDB = "mongodb"
	SessionBackendSQL     = "sql"
)

var _ options.IOptions = (*SessionOptions)(nil)

// SessionOptions 会话历史存储配置。redis 与 mongodb 的连接使用各自的配置分组。
type SessionOptions struct {
	Backend   string        `json:"backend" mapstructure:"backend"`
	Retention time.Duration `json:"retention" mapstructure:"retention"`
	// KeyPrefix redis 键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
	// Collection mongodb 集合名。
	Collection string `json:"collection" mapstructure:"collection"`
	// SQL sql 后端的连接配置。
	SQL *sqldbopts.Options `json:"sql" mapstructure:"sql"`
}

// NewSessionOptions 返回默认配置，历史保留 30 天。
func NewSessionOptions() *SessionOptions {
	sql := sqldbopts.NewOptions()
	sql.Driver = sqldbopts.DriverSQLite
	sql.Path = "docqa_sessions.db"
	return &SessionOptions{
		Backend:    SessionBackendMemory,
		Retention:  30 * 24 * time.Hour,
		KeyPrefix:  "docqa:session:",
		Collection: "chatbot_conversations",
		SQL:        sql,
	}
}

// AddFlags 注册 session.* 参数。
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "session."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Conversation history backend (memory|redis|mongodb|sql).")
	fs.DurationVar(&o.Retention, p+"retention", o.Retention, "How long stored exchanges are kept.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Key prefix of the redis backend.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Collection name of the mongodb backend.")
	if o.SQL == nil {
		o.SQL = sqldbopts.NewOptions()
	}
	o.SQL.AddFlags(fs, append(prefixes, "session", "sql")...)
}

// Complete 规范化后端名。
func (o *SessionOptions) Complete() error {
	o.Backend = strings.ToLower(o.Backend)
	if o.Backend == SessionBackendSQL && o.SQL != nil {
		return o.SQL.Complete()
	}
	return nil
}

// Validate 校验配置。
func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Retention <= 0 {
		errs = append(errs, fmt.Errorf("session.retention must be positive"))
	}
	switch o.Backend {
	case SessionBackendMemory, SessionBackendMongoDB:
	case SessionBackendRedis:
		if o.KeyPrefix == "" {
			errs = append(errs, fmt.Errorf("session.key-prefix is required for the redis backend"))
		}
	case SessionBackendSQL:
		errs = append(errs, o.SQL.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("unsupported session.backend %q", o.Backend))
	}
	return errs
}
