package executor

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb/pool"
	"github.com/hatlonely/ormx/ref"
)

// Row 一行查询结果，列名到值
type Row map[string]any

// ConnPool executor 依赖的连接池能力，*pool.Pool 实现了该接口
type ConnPool interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
	Placeholder() pool.Placeholder
}

type Options struct {
	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableTracing bool `cfg:"enableTracing"`

	// 作为指标名前缀和 tracer 名称
	Name string `cfg:"name" def:"ormx"`
}

// Executor 每次调用从连接池借一个连接，执行完成后在所有路径上归还
type Executor struct {
	pool       ConnPool
	logger     logger.Logger
	registerer prometheus.Registerer
	metrics    *Metrics
	tracer     trace.Tracer
	name       string
}

type Option func(*Executor)

func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegisterer 指定指标注册表，默认 prometheus.DefaultRegisterer
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(e *Executor) {
		e.registerer = registerer
	}
}

// NewExecutor 创建只打日志的 executor
func NewExecutor(p ConnPool, opts ...Option) *Executor {
	e := &Executor{pool: p, logger: log.Default(), name: "ormx"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NewExecutorWithOptions(p ConnPool, options *Options, opts ...Option) (*Executor, error) {
	if p == nil {
		return nil, errors.New("pool cannot be nil")
	}
	if options == nil {
		options = &Options{}
	}

	e := &Executor{pool: p, name: options.Name}
	if e.name == "" {
		e.name = "ormx"
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	e.logger = l

	for _, opt := range opts {
		opt(e)
	}

	if options.EnableMetrics {
		if e.metrics, err = NewMetrics(e.name, e.registerer); err != nil {
			return nil, err
		}
	}
	if options.EnableTracing {
		e.tracer = otel.Tracer("rdb." + e.name)
	}
	return e, nil
}

// Query 执行查询，limit <= 0 时返回全部行，否则最多返回 limit 行
func (e *Executor) Query(ctx context.Context, query string, args []any, limit int) ([]Row, error) {
	var result []Row
	err := e.observe(ctx, "query", query, args, func(ctx context.Context) (int64, error) {
		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		defer conn.Close()

		rows, err := conn.QueryContext(ctx, Rebind(e.pool.Placeholder(), query), args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		result, err = scanRows(rows, limit)
		return int64(len(result)), err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Mutate 执行写语句并返回影响行数
// autocommit 为 false 时在显式事务中执行，执行失败回滚并返回原始错误
func (e *Executor) Mutate(ctx context.Context, query string, args []any, autocommit bool) (int64, error) {
	var affected int64
	err := e.observe(ctx, "mutate", query, args, func(ctx context.Context) (int64, error) {
		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		defer conn.Close()

		query := Rebind(e.pool.Placeholder(), query)
		if autocommit {
			res, err := conn.ExecContext(ctx, query, args...)
			if err != nil {
				return 0, err
			}
			affected, err = res.RowsAffected()
			return affected, err
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err == nil {
			affected, err = res.RowsAffected()
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.WarnContext(ctx, "rollback failed", "error", rbErr)
			}
			affected = 0
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			affected = 0
			return 0, err
		}
		return affected, nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// observe 记录执行前日志，按配置记录指标和 span
func (e *Executor) observe(ctx context.Context, operation string, query string, args []any, fn func(context.Context) (int64, error)) error {
	e.logger.InfoContext(ctx, "execute sql", "operation", operation, "sql", query, "args", args)

	start := time.Now()

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "rdb."+operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("component", e.name),
				attribute.String("db.statement", query),
			),
		)
		defer span.End()
	}

	if e.metrics != nil {
		e.metrics.activeStatements.WithLabelValues(operation).Inc()
		defer e.metrics.activeStatements.WithLabelValues(operation).Dec()
	}

	rows, err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("db.rows", rows), attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	status := "success"
	if err != nil {
		status = "error"
		e.logger.WarnContext(ctx, "sql failed", "operation", operation, "sql", query, "duration", duration, "error", err)
	} else {
		e.logger.DebugContext(ctx, "sql done", "operation", operation, "rows", rows, "duration", duration)
	}
	if e.metrics != nil {
		e.metrics.observe(operation, status, duration.Seconds(), rows)
	}

	return err
}

func scanRows(rows *sql.Rows, limit int) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for (limit <= 0 || len(result) < limit) && rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
