package orm

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/rdb/field"
	"github.com/hatlonely/ormx/rdb/schema"
)

var timeType = reflect.TypeOf(time.Time{})

// 数据库返回的时间字符串可能的格式
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02",
}

func structValue(meta *schema.Metadata, v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, errors.New("nil pointer")
		}
		rv = rv.Elem()
	}
	if meta.Type() == nil || rv.Type() != meta.Type() {
		return reflect.Value{}, errors.Errorf("%T does not match model %s", v, meta.Name())
	}
	return rv, nil
}

// structValues 读取结构体字段值，omitDefaults 为 true 时跳过声明了默认值的零值字段
func structValues(meta *schema.Metadata, v any, omitDefaults bool) (map[string]any, error) {
	rv, err := structValue(meta, v)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	for _, attr := range meta.Fields() {
		idx, _ := meta.FieldIndex(attr.Name)
		fv := rv.FieldByIndex(idx)
		if omitDefaults && fv.IsZero() && declaresDefault(attr.Field) {
			continue
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				values[attr.Name] = nil
				continue
			}
			fv = fv.Elem()
		}
		values[attr.Name] = fv.Interface()
	}
	return values, nil
}

// declaresDefault 字段有生成器或非零的静态默认值
func declaresDefault(f *field.Field) bool {
	d := f.Default()
	if d.IsGenerated() {
		return true
	}
	if d.IsNil() {
		return false
	}
	return !reflect.ValueOf(d.Resolve()).IsZero()
}

// scanStruct 把属性值写入 dest 指向的结构体
func scanStruct(meta *schema.Metadata, values map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("dest must be a non-nil pointer to struct")
	}
	rv, err := structValue(meta, dest)
	if err != nil {
		return err
	}

	for _, attr := range meta.Fields() {
		value, ok := values[attr.Name]
		if !ok {
			continue
		}
		idx, _ := meta.FieldIndex(attr.Name)
		if err := setFieldValue(rv.FieldByIndex(idx), value); err != nil {
			return errors.WithMessagef(err, "failed to set field %s", attr.Name)
		}
	}
	return nil
}

// setFieldValue 把驱动返回的值转换为字段类型
func setFieldValue(fv reflect.Value, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(fv.Type().Elem())
		if err := setFieldValue(ptr.Elem(), value); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	if fv.Type() == timeType {
		return setTime(fv, value)
	}

	switch fv.Kind() {
	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			fv.SetBool(v)
			return nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(err, "cannot parse %q as bool", v)
			}
			fv.SetBool(b)
			return nil
		}
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		fv.SetBool(n != 0)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		if fv.OverflowInt(n) {
			return errors.Errorf("%d overflows %v", n, fv.Type())
		}
		fv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		if n < 0 || fv.OverflowUint(uint64(n)) {
			return errors.Errorf("%d overflows %v", n, fv.Type())
		}
		fv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(value)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
		return nil
	case reflect.String:
		switch v := value.(type) {
		case string:
			fv.SetString(v)
		case time.Time:
			fv.SetString(v.Format(time.RFC3339Nano))
		default:
			fv.SetString(fmt.Sprint(v))
		}
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %T to %v", value, fv.Type())
}

func setTime(fv reflect.Value, value any) error {
	switch v := value.(type) {
	case time.Time:
		fv.Set(reflect.ValueOf(v))
		return nil
	case string:
		var lastErr error
		for _, format := range timeFormats {
			t, err := time.ParseInLocation(format, v, time.Local)
			if err == nil {
				fv.Set(reflect.ValueOf(t))
				return nil
			}
			lastErr = err
		}
		return errors.Wrapf(lastErr, "cannot parse time string %q", v)
	case int64:
		fv.Set(reflect.ValueOf(time.Unix(v, 0)))
		return nil
	}
	return errors.Errorf("cannot convert %T to time.Time", value)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return toInt64(string(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, errors.Wrapf(err, "cannot parse %q as integer", v)
	}
	return 0, errors.Errorf("cannot convert %T to integer", value)
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, errors.Wrapf(err, "cannot parse %q as float", v)
	}
	n, err := toInt64(value)
	return float64(n), err
}
