package orm

import (
	"github.com/hatlonely/ormx/rdb"
	"github.com/pkg/errors"
)

type queryOptions struct {
	where   string
	args    []any
	orderBy string
	limit   any
}

type QueryOption func(*queryOptions)

// Where 原样拼接的 WHERE 子句，参数使用 ? 占位
func Where(clause string, args ...any) QueryOption {
	return func(o *queryOptions) {
		o.where = clause
		o.args = args
	}
}

// OrderBy 原样拼接的 ORDER BY 子句
func OrderBy(clause string) QueryOption {
	return func(o *queryOptions) {
		o.orderBy = clause
	}
}

// Limit 接受 int 或 (offset, count) 形式的 [2]int / []int，其他值在查询前返回 ErrInvalidLimit
func Limit(v any) QueryOption {
	return func(o *queryOptions) {
		o.limit = v
	}
}

// Page 等价于 Limit([2]int{offset, count})
func Page(offset int, count int) QueryOption {
	return Limit([2]int{offset, count})
}

func newQueryOptions(opts []QueryOption) *queryOptions {
	o := &queryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// limitArgs 返回 LIMIT 子句、参数以及最多返回的行数
func limitArgs(v any) (string, []any, int, error) {
	switch l := v.(type) {
	case nil:
		return "", nil, 0, nil
	case int:
		return " LIMIT ?", []any{l}, l, nil
	case int32:
		return " LIMIT ?", []any{l}, int(l), nil
	case int64:
		return " LIMIT ?", []any{l}, int(l), nil
	case [2]int:
		return " LIMIT ?, ?", []any{l[0], l[1]}, l[1], nil
	case []int:
		if len(l) == 2 {
			return " LIMIT ?, ?", []any{l[0], l[1]}, l[1], nil
		}
	}
	return "", nil, 0, errors.Wrapf(rdb.ErrInvalidLimit, "%#v", v)
}
