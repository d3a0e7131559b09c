package schema

import (
	"reflect"
	"strings"

	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb"
	"github.com/hatlonely/ormx/rdb/field"
	"github.com/pkg/errors"
)

// Attribute 一个已绑定列名的属性
type Attribute struct {
	Name  string
	Field *field.Field
}

// Metadata 记录类型编译后的元数据，构造后只读，可并发使用
type Metadata struct {
	name       string
	table      string
	attrs      []Attribute
	index      map[string]int
	primaryKey string
	nonKey     []string

	selectSQL string
	insertSQL string
	updateSQL string
	deleteSQL string

	// 通过结构体注册时记录属性对应的结构体字段
	goType       reflect.Type
	fieldIndexes map[string][]int
}

func (m *Metadata) Name() string {
	return m.name
}

func (m *Metadata) Table() string {
	return m.table
}

// Fields 按声明顺序返回全部属性
func (m *Metadata) Fields() []Attribute {
	attrs := make([]Attribute, len(m.attrs))
	copy(attrs, m.attrs)
	return attrs
}

func (m *Metadata) Field(attr string) (*field.Field, bool) {
	i, ok := m.index[attr]
	if !ok {
		return nil, false
	}
	return m.attrs[i].Field, true
}

// Column 返回属性对应的列名，未声明的属性原样返回
func (m *Metadata) Column(attr string) string {
	if f, ok := m.Field(attr); ok {
		return f.Name()
	}
	return attr
}

func (m *Metadata) PrimaryKey() string {
	return m.primaryKey
}

func (m *Metadata) NonKeyFields() []string {
	nonKey := make([]string, len(m.nonKey))
	copy(nonKey, m.nonKey)
	return nonKey
}

func (m *Metadata) SelectSQL() string {
	return m.selectSQL
}

func (m *Metadata) InsertSQL() string {
	return m.insertSQL
}

// UpdateSQL 没有非主键字段时为空
func (m *Metadata) UpdateSQL() string {
	return m.updateSQL
}

func (m *Metadata) DeleteSQL() string {
	return m.deleteSQL
}

// Type 结构体注册时的结构体类型，显式注册时为 nil
func (m *Metadata) Type() reflect.Type {
	return m.goType
}

// FieldIndex 属性在结构体中的字段路径
func (m *Metadata) FieldIndex(attr string) ([]int, bool) {
	idx, ok := m.fieldIndexes[attr]
	return idx, ok
}

// Builder 按声明顺序收集字段并编译元数据
type Builder struct {
	name    string
	table   string
	attrs   []Attribute
	indexes map[string][]int
	goType  reflect.Type
	logger  logger.Logger
	err     error
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Logger 编译成功后以 debug 级别输出模型和字段映射，默认使用 log.Default()
func (b *Builder) Logger(l logger.Logger) *Builder {
	b.logger = l
	return b
}

// Table 指定表名，不指定时使用记录类型名
func (b *Builder) Table(table string) *Builder {
	b.table = table
	return b
}

func (b *Builder) Add(attr string, f *field.Field) *Builder {
	b.attrs = append(b.attrs, Attribute{Name: attr, Field: f})
	return b
}

func (b *Builder) schemaError(attr string, err error) error {
	return &rdb.SchemaError{Model: b.name, Field: attr, Err: err}
}

func (b *Builder) Build() (*Metadata, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, b.schemaError("", errors.Wrap(rdb.ErrInvalidField, "model name is required"))
	}

	m := &Metadata{
		name:         b.name,
		table:        b.table,
		index:        map[string]int{},
		goType:       b.goType,
		fieldIndexes: b.indexes,
	}
	if m.table == "" {
		m.table = b.name
	}

	columns := map[string]bool{}
	for _, attr := range b.attrs {
		if attr.Name == "" || attr.Field == nil {
			return nil, b.schemaError(attr.Name, rdb.ErrInvalidField)
		}
		if err := attr.Field.Validate(); err != nil {
			return nil, b.schemaError(attr.Name, err)
		}
		if _, ok := m.index[attr.Name]; ok {
			return nil, b.schemaError(attr.Name, rdb.ErrDuplicateField)
		}

		f := attr.Field.Bind(attr.Name)
		if columns[strings.ToLower(f.Name())] {
			return nil, b.schemaError(attr.Name, errors.Wrapf(rdb.ErrDuplicateField, "column %s", f.Name()))
		}
		columns[strings.ToLower(f.Name())] = true

		if f.IsPrimaryKey() {
			if m.primaryKey != "" {
				return nil, b.schemaError(attr.Name, rdb.ErrDuplicatePrimaryKey)
			}
			m.primaryKey = attr.Name
		} else {
			m.nonKey = append(m.nonKey, attr.Name)
		}

		m.index[attr.Name] = len(m.attrs)
		m.attrs = append(m.attrs, Attribute{Name: attr.Name, Field: f})
	}
	if m.primaryKey == "" {
		return nil, b.schemaError("", rdb.ErrMissingPrimaryKey)
	}

	m.compile()
	b.logMapping(m)
	return m, nil
}

func (b *Builder) logMapping(m *Metadata) {
	l := b.logger
	if l == nil {
		l = log.Default()
	}
	l.Debug("found model", "model", m.name, "table", m.table)
	for _, attr := range m.attrs {
		l.Debug("found mapping", "model", m.name, "attr", attr.Name, "field", attr.Field.String())
	}
}

func (b *Builder) MustBuild() *Metadata {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metadata) compile() {
	table := quote(m.table)
	pk := quote(m.Column(m.primaryKey))

	selects := []string{m.selectColumn(m.primaryKey)}
	inserts := make([]string, 0, len(m.nonKey)+1)
	updates := make([]string, 0, len(m.nonKey))
	for _, attr := range m.nonKey {
		column := quote(m.Column(attr))
		selects = append(selects, m.selectColumn(attr))
		inserts = append(inserts, column)
		updates = append(updates, column+"=?")
	}
	inserts = append(inserts, pk)

	m.selectSQL = "SELECT " + strings.Join(selects, ", ") + " FROM " + table
	m.insertSQL = "INSERT INTO " + table + " (" + strings.Join(inserts, ", ") + ") VALUES (" + placeholders(len(inserts)) + ")"
	if len(updates) > 0 {
		m.updateSQL = "UPDATE " + table + " SET " + strings.Join(updates, ", ") + " WHERE " + pk + "=?"
	}
	m.deleteSQL = "DELETE FROM " + table + " WHERE " + pk + "=?"
}

// selectColumn 列名和属性名不同时加别名，查询结果总是以属性名为键
func (m *Metadata) selectColumn(attr string) string {
	column := m.Column(attr)
	if column == attr {
		return quote(column)
	}
	return quote(column) + " AS " + quote(attr)
}

// Quote 用反引号包裹标识符
func Quote(identifier string) string {
	return quote(identifier)
}

func quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
