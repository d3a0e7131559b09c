package schema

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hatlonely/ormx/rdb"
	"github.com/hatlonely/ormx/rdb/field"
	"github.com/pkg/errors"
)

// Tabler 自定义表名
type Tabler interface {
	TableName() string
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()

	structCache sync.Map
)

// For 编译 T 的元数据，同一类型只编译一次
func For[T any]() (*Metadata, error) {
	return forType(reflect.TypeOf((*T)(nil)).Elem())
}

func MustFor[T any]() *Metadata {
	m, err := For[T]()
	if err != nil {
		panic(err)
	}
	return m
}

// FromStruct 根据结构体的 orm tag 编译元数据
// 支持的 tag 格式：`orm:"column,pk,type=text,size=255,default=1,generator=uuid,ddl=char(36)"`
// 表名取 TableName() 方法的返回值，否则使用结构体名
func FromStruct(v any) (*Metadata, error) {
	if v == nil {
		return nil, errors.New("expected struct, got nil")
	}
	return forType(reflect.TypeOf(v))
}

func forType(rt reflect.Type) (*Metadata, error) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %v", rt)
	}

	if m, ok := structCache.Load(rt); ok {
		return m.(*Metadata), nil
	}

	m, err := compileStruct(rt)
	if err != nil {
		return nil, err
	}
	actual, _ := structCache.LoadOrStore(rt, m)
	return actual.(*Metadata), nil
}

func compileStruct(rt reflect.Type) (*Metadata, error) {
	b := NewBuilder(rt.Name())
	b.goType = rt
	b.indexes = map[string][]int{}

	if table := tableName(rt); table != "" {
		b.Table(table)
	}

	if err := b.addStructFields(rt, nil); err != nil {
		return nil, err
	}
	return b.Build()
}

func tableName(rt reflect.Type) string {
	var v reflect.Value
	switch {
	case rt.Implements(tablerType):
		v = reflect.Zero(rt)
	case reflect.PointerTo(rt).Implements(tablerType):
		v = reflect.New(rt)
	default:
		return ""
	}
	return v.Interface().(Tabler).TableName()
}

func (b *Builder) addStructFields(rt reflect.Type, parent []int) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, hasTag := sf.Tag.Lookup("orm")
		if tag == "-" {
			continue
		}

		index := append(append([]int{}, parent...), i)

		// 匿名嵌入的结构体展开
		if sf.Anonymous && !hasTag {
			et := sf.Type
			if et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && et != timeType {
				if sf.Type.Kind() == reflect.Ptr {
					return b.schemaError(sf.Name, errors.Wrap(rdb.ErrUnsupportedType, "embedded pointer"))
				}
				if err := b.addStructFields(et, index); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		attr, f, err := parseField(sf, tag)
		if err != nil {
			return b.schemaError(sf.Name, err)
		}
		if _, ok := b.indexes[attr]; ok {
			return b.schemaError(attr, rdb.ErrDuplicateField)
		}
		b.indexes[attr] = index
		b.Add(attr, f)
	}
	return nil
}

// parseField 解析 orm tag，第一段是列名，其余为选项
func parseField(sf reflect.StructField, tag string) (string, *field.Field, error) {
	parts := strings.Split(tag, ",")

	attr := strings.TrimSpace(parts[0])
	if attr == "" {
		attr = snakeCase(sf.Name)
	}

	kind, err := inferKind(sf.Type)
	if err != nil {
		return "", nil, err
	}

	var opts []field.Option
	var defValue, ddl string
	var hasDefault bool
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "pk", "primary":
			opts = append(opts, field.PrimaryKey())
		case "type":
			if kind, err = parseKind(value); err != nil {
				return "", nil, err
			}
		case "size":
			size, err := strconv.Atoi(value)
			if err != nil || size <= 0 {
				return "", nil, errors.Wrapf(rdb.ErrInvalidField, "invalid size %q", value)
			}
			ddl = "varchar(" + value + ")"
		case "ddl":
			ddl = value
		case "default":
			defValue, hasDefault = value, true
		case "generator":
			opts = append(opts, field.WithGeneratorName(value))
		default:
			return "", nil, errors.Wrapf(rdb.ErrInvalidField, "unknown option %q", key)
		}
	}

	if ddl == "" && kind == field.KindString && derefType(sf.Type) == timeType {
		ddl = "datetime"
	}
	if ddl != "" {
		opts = append(opts, field.WithDDL(ddl))
	}
	if hasDefault {
		v, err := parseDefault(kind, defValue)
		if err != nil {
			return "", nil, err
		}
		opts = append([]field.Option{field.WithDefault(v)}, opts...)
	}

	return attr, newKindField(kind, opts), nil
}

func newKindField(kind field.Kind, opts []field.Option) *field.Field {
	switch kind {
	case field.KindBoolean:
		return field.Boolean(opts...)
	case field.KindInteger:
		return field.Integer(opts...)
	case field.KindFloat:
		return field.Float(opts...)
	case field.KindText:
		return field.Text(opts...)
	default:
		return field.String(opts...)
	}
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// inferKind 从 Go 类型推断字段种类
func inferKind(t reflect.Type) (field.Kind, error) {
	t = derefType(t)
	if t == timeType {
		return field.KindString, nil
	}

	switch t.Kind() {
	case reflect.String:
		return field.KindString, nil
	case reflect.Bool:
		return field.KindBoolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field.KindInteger, nil
	case reflect.Float32, reflect.Float64:
		return field.KindFloat, nil
	default:
		return "", errors.Wrapf(rdb.ErrUnsupportedType, "%v", t)
	}
}

func parseKind(value string) (field.Kind, error) {
	switch strings.ToLower(value) {
	case "string":
		return field.KindString, nil
	case "boolean", "bool":
		return field.KindBoolean, nil
	case "integer", "int":
		return field.KindInteger, nil
	case "float":
		return field.KindFloat, nil
	case "text":
		return field.KindText, nil
	default:
		return "", errors.Wrapf(rdb.ErrInvalidField, "unknown type %q", value)
	}
}

func parseDefault(kind field.Kind, value string) (any, error) {
	switch kind {
	case field.KindBoolean:
		v, err := strconv.ParseBool(value)
		return v, errors.Wrapf(err, "invalid default %q", value)
	case field.KindInteger:
		v, err := strconv.ParseInt(value, 10, 64)
		return v, errors.Wrapf(err, "invalid default %q", value)
	case field.KindFloat:
		v, err := strconv.ParseFloat(value, 64)
		return v, errors.Wrapf(err, "invalid default %q", value)
	default:
		if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		return value, nil
	}
}

// snakeCase CreatedAt -> created_at, UserID -> user_id
func snakeCase(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
