package orm

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/rdb/schema"
)

// Table 以结构体 T 为记录类型的类型化入口，元数据由 T 的 orm tag 编译
type Table[T any] struct {
	model *Model
}

func NewTable[T any](exec Executor, opts ...Option) (*Table[T], error) {
	var zero T
	if reflect.TypeOf(zero) == nil || reflect.TypeOf(zero).Kind() != reflect.Struct {
		return nil, errors.Errorf("%T is not a struct type", zero)
	}
	meta, err := schema.For[T]()
	if err != nil {
		return nil, err
	}
	return &Table[T]{model: NewModel(meta, exec, opts...)}, nil
}

func MustNewTable[T any](exec Executor, opts ...Option) *Table[T] {
	t, err := NewTable[T](exec, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table[T]) Model() *Model {
	return t.model
}

func (t *Table[T]) toStruct(r *Record) (*T, error) {
	v := new(T)
	if err := r.Scan(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *Table[T]) Find(ctx context.Context, pk any) (*T, error) {
	r, err := t.model.Find(ctx, pk)
	if err != nil || r == nil {
		return nil, err
	}
	return t.toStruct(r)
}

func (t *Table[T]) FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error) {
	records, err := t.model.FindAll(ctx, opts...)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(records))
	for _, r := range records {
		v, err := t.toStruct(r)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (t *Table[T]) FindNumber(ctx context.Context, expr string, opts ...QueryOption) (any, error) {
	return t.model.FindNumber(ctx, expr, opts...)
}

func (t *Table[T]) Count(ctx context.Context, opts ...QueryOption) (int64, error) {
	return t.model.Count(ctx, opts...)
}

// Save 插入记录，声明了默认值的零值字段按未设置处理，补齐的默认值会写回 record
// 需要写入零值时把字段声明为指针，非 nil 指针总是按已设置处理
func (t *Table[T]) Save(ctx context.Context, record *T) error {
	values, err := structValues(t.model.meta, record, true)
	if err != nil {
		return err
	}
	r := &Record{model: t.model, values: values}
	if err := r.Save(ctx); err != nil {
		return err
	}
	return r.Scan(record)
}

func (t *Table[T]) Update(ctx context.Context, record *T) error {
	r, err := t.model.FromStruct(record)
	if err != nil {
		return err
	}
	return r.Update(ctx)
}

func (t *Table[T]) Remove(ctx context.Context, record *T) error {
	r, err := t.model.FromStruct(record)
	if err != nil {
		return err
	}
	return r.Remove(ctx)
}

var _ ORM[struct{}] = (*Table[struct{}])(nil)
