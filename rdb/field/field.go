package field

import (
	"fmt"

	"github.com/hatlonely/ormx/rdb"
	"github.com/pkg/errors"
)

// Kind 字段种类
type Kind string

const (
	KindString  Kind = "StringField"
	KindBoolean Kind = "BooleanField"
	KindInteger Kind = "IntegerField"
	KindFloat   Kind = "FloatField"
	KindText    Kind = "TextField"
)

// Field 描述一个映射到数据库列的字段，构造后不可修改
type Field struct {
	kind       Kind
	name       string
	columnType string
	primaryKey bool
	def        Default
	err        error
}

type Option func(*Field)

// WithName 指定列名，不指定时使用属性名
func WithName(name string) Option {
	return func(f *Field) {
		f.name = name
	}
}

// PrimaryKey 标记为主键，只有 String/Integer/Float 支持
func PrimaryKey() Option {
	return func(f *Field) {
		f.primaryKey = true
	}
}

// WithDefault 静态默认值
func WithDefault(value any) Option {
	return func(f *Field) {
		f.def = Static(value)
	}
}

// WithGenerator 每次取默认值时调用 fn
func WithGenerator(fn Generator) Option {
	return func(f *Field) {
		if fn == nil {
			f.err = errors.New("generator cannot be nil")
			return
		}
		f.def = Generated(fn)
	}
}

// WithGeneratorName 使用注册表中的生成器
func WithGeneratorName(name string) Option {
	return func(f *Field) {
		fn, ok := LookupGenerator(name)
		if !ok {
			f.err = errors.Errorf("generator %q not registered", name)
			return
		}
		f.def = Generated(fn)
	}
}

// WithDDL 覆盖列类型，只有 String 支持
func WithDDL(ddl string) Option {
	return func(f *Field) {
		if f.kind != KindString {
			f.err = errors.Errorf("%s does not support ddl", f.kind)
			return
		}
		f.columnType = ddl
	}
}

func newField(kind Kind, columnType string, def Default, opts []Option) *Field {
	f := &Field{kind: kind, columnType: columnType, def: def}
	for _, opt := range opts {
		opt(f)
	}
	if f.err == nil && f.primaryKey && (kind == KindBoolean || kind == KindText) {
		f.err = errors.Errorf("%s cannot be primary key", kind)
	}
	return f
}

func String(opts ...Option) *Field {
	return newField(KindString, "varchar(100)", Default{}, opts)
}

func Boolean(opts ...Option) *Field {
	return newField(KindBoolean, "boolean", Static(false), opts)
}

func Integer(opts ...Option) *Field {
	return newField(KindInteger, "bigint", Static(int64(0)), opts)
}

func Float(opts ...Option) *Field {
	return newField(KindFloat, "real", Static(0.0), opts)
}

func Text(opts ...Option) *Field {
	return newField(KindText, "text", Default{}, opts)
}

func (f *Field) Kind() Kind {
	return f.kind
}

func (f *Field) Name() string {
	return f.name
}

func (f *Field) ColumnType() string {
	return f.columnType
}

func (f *Field) IsPrimaryKey() bool {
	return f.primaryKey
}

func (f *Field) Default() Default {
	return f.def
}

// Validate 返回构造过程中记录的错误
func (f *Field) Validate() error {
	if f.err != nil {
		return errors.Wrap(rdb.ErrInvalidField, f.err.Error())
	}
	return nil
}

// Bind 返回列名补齐为 name 的副本，已指定列名时原样返回
func (f *Field) Bind(name string) *Field {
	if f.name != "" {
		return f
	}
	c := *f
	c.name = name
	return &c
}

func (f *Field) String() string {
	return fmt.Sprintf("<%s, %s:%s>", f.kind, f.columnType, f.name)
}
