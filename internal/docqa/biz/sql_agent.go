package biz

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"

	logctx "github.com/kart-io/docqa/pkg/infra/logger"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
	"github.com/kart-io/docqa/pkg/utils/json"
)

// DefaultSQLMaxRows 单次查询最多返回的行数。
const DefaultSQLMaxRows = 50

// ErrUnsafeSQL 生成的语句不是单条只读查询。
var ErrUnsafeSQL = errors.New("generated SQL is not a single read-only query")

const sqlSystemPrompt = `You translate questions into a single read-only SQL query for a %s database.
Use only the tables and columns listed below. Return only the SQL statement without explanation or markdown.

Schema:
%s`

const sqlAnswerPrompt = `Answer the question using only the query result below.
If the result does not contain the answer, say so.

Question: %s
SQL: %s
Result (JSON rows): %s

Answer:`

var (
	codeFence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	readOnlyPrefix = regexp.MustCompile(`(?i)^(select|with)\b`)
	writeKeyword   = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|merge|attach|detach|pragma|vacuum|call|exec|execute|copy|lock|set)\b`)
)

// SQLAgentConfig SQL 能力体配置。
type SQLAgentConfig struct {
	// Dialect 数据库方言名，写入提示词。
	Dialect string
	// MaxRows 行数上限。
	MaxRows int
	// Tables 限定可见的表，为空时使用全部表。
	Tables []string
	// Retry 生成调用的重试策略。
	Retry resilience.RetryPolicy
}

// SQLAgent 把问题翻译成只读 SQL，执行后再由模型基于结果作答。
type SQLAgent struct {
	db     *gorm.DB
	chat   llm.ChatProvider
	config *SQLAgentConfig
	schema string
}

// NewSQLAgent 读取表结构并创建能力体。无可用表时返回错误。
func NewSQLAgent(ctx context.Context, db *gorm.DB, chat llm.ChatProvider, config *SQLAgentConfig) (*SQLAgent, error) {
	if config == nil {
		config = &SQLAgentConfig{}
	}
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultSQLMaxRows
	}
	if config.Dialect == "" {
		config.Dialect = db.Dialector.Name()
	}

	schema, err := DescribeSchema(db.WithContext(ctx), config.Tables)
	if err != nil {
		return nil, err
	}
	return &SQLAgent{db: db, chat: chat, config: config, schema: schema}, nil
}

// DescribeSchema 用 gorm Migrator 列出表与列，按表名排序。
func DescribeSchema(db *gorm.DB, only []string) (string, error) {
	migrator := db.Migrator()
	tables, err := migrator.GetTables()
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}

	if len(only) > 0 {
		allowed := make(map[string]struct{}, len(only))
		for _, t := range only {
			allowed[t] = struct{}{}
		}
		filtered := tables[:0]
		for _, t := range tables {
			if _, ok := allowed[t]; ok {
				filtered = append(filtered, t)
			}
		}
		tables = filtered
	}
	if len(tables) == 0 {
		return "", errors.New("no tables available")
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, table := range tables {
		cols, err := migrator.ColumnTypes(table)
		if err != nil {
			return "", fmt.Errorf("describe table %s: %w", table, err)
		}
		parts := make([]string, 0, len(cols))
		for _, c := range cols {
			parts = append(parts, c.Name()+" "+c.DatabaseTypeName())
		}
		fmt.Fprintf(&b, "%s(%s)\n", table, strings.Join(parts, ", "))
	}
	return b.String(), nil
}

// Name 实现 Agent。
func (a *SQLAgent) Name() string { return SQLAgentName }

// Schema 返回表结构摘要。
func (a *SQLAgent) Schema() string { return a.schema }

// Invoke 实现 Agent。
func (a *SQLAgent) Invoke(ctx context.Context, question string, _ []Turn) (string, Status) {
	ctx, span := tracer.Start(ctx, "sqlagent.Invoke")
	defer span.End()
	log := logctx.L(ctx)

	raw, err := a.generate(ctx, fmt.Sprintf(sqlSystemPrompt, a.config.Dialect, a.schema), question)
	if err != nil {
		return "", statusFor(ctx, err)
	}
	query, err := SanitizeSQL(raw)
	if err != nil {
		log.Warnw("Rejected generated SQL", "sql", raw)
		return "", Status{Code: StatusFailed, Err: err}
	}

	rows, err := a.run(ctx, query)
	if err != nil {
		log.Warnw("SQL query failed", "sql", query, "error", err.Error())
		return "", statusFor(ctx, err)
	}
	if len(rows) == 0 {
		return "", Status{Code: StatusEmpty}
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return "", Status{Code: StatusFailed, Err: err}
	}
	answer, err := a.generate(ctx, "", fmt.Sprintf(sqlAnswerPrompt, question, query, payload))
	if err != nil {
		return "", statusFor(ctx, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", Status{Code: StatusEmpty}
	}
	log.Debugw("SQL agent answered", "rows", len(rows))
	return answer, Status{Code: StatusOK}
}

func (a *SQLAgent) generate(ctx context.Context, system, prompt string) (string, error) {
	return resilience.Do(ctx, a.config.Retry, func(ctx context.Context) (string, error) {
		return a.chat.Generate(ctx, prompt, system)
	})
}

// run 用子查询包一层 LIMIT，兼容 MySQL、PostgreSQL 与 SQLite。
func (a *SQLAgent) run(ctx context.Context, query string) ([]map[string]any, error) {
	limited := fmt.Sprintf("SELECT * FROM (%s) AS docqa_q LIMIT %d", query, a.config.MaxRows)
	var rows []map[string]any
	if err := a.db.WithContext(ctx).Raw(limited).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
	return rows, nil
}

// SanitizeSQL 去掉代码块标记与结尾分号，只接受单条 SELECT/WITH 语句。
func SanitizeSQL(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(q); m != nil {
		q = strings.TrimSpace(m[1])
	}
	q = strings.TrimSpace(strings.TrimRight(q, "; \n\t"))

	if q == "" || !readOnlyPrefix.MatchString(q) {
		return "", ErrUnsafeSQL
	}
	if strings.Contains(q, ";") || strings.Contains(q, "--") || strings.Contains(q, "/*") {
		return "", ErrUnsafeSQL
	}
	if writeKeyword.MatchString(stripQuoted(q)) {
		return "", ErrUnsafeSQL
	}
	return q, nil
}

// stripQuoted 去掉字符串字面量，避免字面量中的关键字误判。
func stripQuoted(q string) string {
	var b strings.Builder
	var quote rune
	for _, r := range q {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
