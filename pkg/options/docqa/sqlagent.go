package docqa

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
	sqldbopts "github.com/kart-io/docqa/pkg/options/sqldb"
)

var _ options.IOptions = (*SQLAgentOptions)(nil)

// SQLAgentOptions 结构化数据问答配置，默认关闭。
type SQLAgentOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// MaxRows 单次查询返回的行数上限。
	MaxRows int `json:"max-rows" mapstructure:"max-rows"`
	// Tables 可见的表，为空时为全部表。
	Tables []string           `json:"tables" mapstructure:"tables"`
	DB     *sqldbopts.Options `json:"db" mapstructure:"db"`
}

// NewSQLAgentOptions 返回默认配置。
func NewSQLAgentOptions() *SQLAgentOptions {
	return &SQLAgentOptions{
		MaxRows: 50,
		DB:      sqldbopts.NewOptions(),
	}
}

// AddFlags 注册 sql-agent.* 参数。
func (o *SQLAgentOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "sql-agent."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the SQL Assistant agent.")
	fs.IntVar(&o.MaxRows, p+"max-rows", o.MaxRows, "Maximum rows returned by a generated query.")
	fs.StringSliceVar(&o.Tables, p+"tables", o.Tables, "Tables visible to the SQL Assistant, empty for all.")
	if o.DB == nil {
		o.DB = sqldbopts.NewOptions()
	}
	o.DB.AddFlags(fs, append(prefixes, "sql-agent", "db")...)
}

// Complete 补全数据库配置。
func (o *SQLAgentOptions) Complete() error {
	if !o.Enabled {
		return nil
	}
	return o.DB.Complete()
}

// Validate 校验配置，未启用时不检查数据库连接参数。
func (o *SQLAgentOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	var errs []error
	if o.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("sql-agent.max-rows must be positive"))
	}
	return append(errs, o.DB.Validate()...)
}
