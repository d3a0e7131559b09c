package orm

import (
	"context"

	"github.com/hatlonely/ormx/rdb/executor"
)

// Executor 记录读写依赖的语句执行能力，*executor.Executor 实现了该接口
type Executor interface {
	Query(ctx context.Context, query string, args []any, limit int) ([]executor.Row, error)
	Mutate(ctx context.Context, query string, args []any, autocommit bool) (int64, error)
}

// ORM 结构体记录的增删改查，*Table[T] 实现了该接口
type ORM[T any] interface {
	Find(ctx context.Context, pk any) (*T, error)
	FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error)
	FindNumber(ctx context.Context, expr string, opts ...QueryOption) (any, error)
	Count(ctx context.Context, opts ...QueryOption) (int64, error)
	Save(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) error
	Remove(ctx context.Context, record *T) error
}
