package orm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb/executor"
	"github.com/hatlonely/ormx/rdb/schema"
)

const numberAlias = "_num_"

// Model 一个记录类型的句柄，持有编译好的元数据和 executor
type Model struct {
	meta       *schema.Metadata
	exec       Executor
	logger     logger.Logger
	autocommit bool
}

type Option func(*Model)

func WithLogger(l logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAutocommit 为 false 时 Save/Update/Remove 在显式事务中执行，默认 true
func WithAutocommit(autocommit bool) Option {
	return func(m *Model) {
		m.autocommit = autocommit
	}
}

func NewModel(meta *schema.Metadata, exec Executor, opts ...Option) *Model {
	m := &Model{
		meta:       meta,
		exec:       exec,
		logger:     log.Default(),
		autocommit: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("model", meta.Name())
	return m
}

func (m *Model) Metadata() *schema.Metadata {
	return m.meta
}

// New 用给定的属性值创建记录，values 会被复制
func (m *Model) New(values map[string]any) *Record {
	r := &Record{model: m, values: make(map[string]any, len(values))}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

func (m *Model) fromRow(row executor.Row) *Record {
	return m.New(row)
}

// Find 按主键查询，没有匹配的行时返回 nil, nil
func (m *Model) Find(ctx context.Context, pk any) (*Record, error) {
	query := m.meta.SelectSQL() + " WHERE " + schema.Quote(m.meta.Column(m.meta.PrimaryKey())) + "=?"
	rows, err := m.exec.Query(ctx, query, []any{pk}, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return m.fromRow(rows[0]), nil
}

// FindAll 在 select 模板上依次拼接 WHERE、ORDER BY、LIMIT
func (m *Model) FindAll(ctx context.Context, opts ...QueryOption) ([]*Record, error) {
	o := newQueryOptions(opts)

	limitClause, extra, maxRows, err := limitArgs(o.limit)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(m.meta.SelectSQL())
	args := append([]any{}, o.args...)
	if o.where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(o.where)
	}
	if o.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(o.orderBy)
	}
	sb.WriteString(limitClause)
	args = append(args, extra...)

	rows, err := m.exec.Query(ctx, sb.String(), args, maxRows)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, m.fromRow(row))
	}
	return records, nil
}

// FindNumber 查询单个聚合值，例如 count(*)，没有行时返回 nil
func (m *Model) FindNumber(ctx context.Context, expr string, opts ...QueryOption) (any, error) {
	o := newQueryOptions(opts)

	query := "SELECT " + expr + " AS " + schema.Quote(numberAlias) + " FROM " + schema.Quote(m.meta.Table())
	if o.where != "" {
		query += " WHERE " + o.where
	}

	rows, err := m.exec.Query(ctx, query, o.args, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0][numberAlias], nil
}

// Count 满足条件的行数
func (m *Model) Count(ctx context.Context, opts ...QueryOption) (int64, error) {
	v, err := m.FindNumber(ctx, "count(*)", opts...)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, errors.WithMessage(err, "unexpected count value")
	}
	return n, nil
}

// FromStruct 把结构体转换为记录，模型必须由同一结构体类型编译
func (m *Model) FromStruct(v any) (*Record, error) {
	values, err := structValues(m.meta, v, false)
	if err != nil {
		return nil, err
	}
	return &Record{model: m, values: values}, nil
}
