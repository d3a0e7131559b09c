package orm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/rdb"
)

// Record 记录实例，属性名到值的映射；单个 Record 不支持并发修改
type Record struct {
	model  *Model
	values map[string]any
}

func (r *Record) Model() *Model {
	return r.model
}

// Get 属性未设置时返回 ErrMissingAttribute，与值为 nil 区分
func (r *Record) Get(key string) (any, error) {
	v, ok := r.values[key]
	if !ok {
		return nil, errors.Wrapf(rdb.ErrMissingAttribute, "%s has no attribute %s", r.model.meta.Name(), key)
	}
	return v, nil
}

// Set 写入任意属性，不校验是否为已声明字段
func (r *Record) Set(key string, value any) {
	r.values[key] = value
}

// GetValue 返回属性值，不存在时返回 nil
func (r *Record) GetValue(key string) any {
	return r.values[key]
}

// GetValueOrDefault 值为 nil 或未设置时取字段默认值并保存到记录上
func (r *Record) GetValueOrDefault(key string) any {
	if v := r.values[key]; v != nil {
		return v
	}

	f, ok := r.model.meta.Field(key)
	if !ok {
		return nil
	}
	v := f.Default().Resolve()
	r.model.logger.Debug("using default value", "field", key, "value", v)
	r.values[key] = v
	return v
}

// Values 全部属性值的副本
func (r *Record) Values() map[string]any {
	values := make(map[string]any, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	return values
}

// Save 插入记录，非主键字段和主键都会补齐默认值
func (r *Record) Save(ctx context.Context) error {
	meta := r.model.meta
	args := make([]any, 0, len(meta.NonKeyFields())+1)
	for _, attr := range meta.NonKeyFields() {
		args = append(args, r.GetValueOrDefault(attr))
	}
	args = append(args, r.GetValueOrDefault(meta.PrimaryKey()))

	n, err := r.model.exec.Mutate(ctx, meta.InsertSQL(), args, r.model.autocommit)
	if err != nil {
		return err
	}
	if n != 1 {
		r.model.logger.WarnContext(ctx, "failed to insert record", "affected", n)
	}
	return nil
}

// Update 按主键更新全部非主键字段，未设置的字段写入 NULL 而不是默认值
func (r *Record) Update(ctx context.Context) error {
	meta := r.model.meta
	if meta.UpdateSQL() == "" {
		return errors.Wrapf(rdb.ErrNothingToUpdate, "%s has no non-key fields", meta.Name())
	}

	args := make([]any, 0, len(meta.NonKeyFields())+1)
	for _, attr := range meta.NonKeyFields() {
		args = append(args, r.GetValue(attr))
	}
	args = append(args, r.GetValue(meta.PrimaryKey()))

	n, err := r.model.exec.Mutate(ctx, meta.UpdateSQL(), args, r.model.autocommit)
	if err != nil {
		return err
	}
	if n != 1 {
		r.model.logger.WarnContext(ctx, "failed to update by primary key", "affected", n)
	}
	return nil
}

func (r *Record) Remove(ctx context.Context) error {
	meta := r.model.meta
	n, err := r.model.exec.Mutate(ctx, meta.DeleteSQL(), []any{r.GetValue(meta.PrimaryKey())}, r.model.autocommit)
	if err != nil {
		return err
	}
	if n != 1 {
		r.model.logger.WarnContext(ctx, "failed to remove by primary key", "affected", n)
	}
	return nil
}

// Scan 把记录写入结构体，模型必须由同一结构体类型编译
func (r *Record) Scan(dest any) error {
	return scanStruct(r.model.meta, r.values, dest)
}
