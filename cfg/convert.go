package cfg

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ConvertTo 将 Decode 得到的通用数据转换到 object 指向的结构体
// 字段名优先取 cfg tag，其次是字段名本身，匹配时忽略大小写
func ConvertTo(src any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convertValue(src, rv.Elem())
}

func convertValue(src any, dst reflect.Value) error {
	srcValue := reflect.ValueOf(src)
	if !srcValue.IsValid() {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	for srcValue.Kind() == reflect.Ptr || srcValue.Kind() == reflect.Interface {
		if srcValue.IsNil() {
			return nil
		}
		srcValue = srcValue.Elem()
	}

	if dst.Type() == durationType {
		return convertToDuration(srcValue, dst)
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(srcValue, dst)
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		return convertToSlice(srcValue, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	}

	// 环境变量等来源的值都是字符串
	if srcValue.Kind() == reflect.String && dst.Kind() != reflect.String {
		return setDefaultValue(dst, srcValue.String())
	}

	if srcValue.Type().ConvertibleTo(dst.Type()) && dst.Kind() != reflect.String {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.String {
		switch srcValue.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetString(strconv.FormatInt(srcValue.Int(), 10))
			return nil
		case reflect.Float32, reflect.Float64:
			dst.SetString(strconv.FormatFloat(srcValue.Float(), 'f', -1, 64))
			return nil
		case reflect.Bool:
			dst.SetString(strconv.FormatBool(srcValue.Bool()))
			return nil
		}
	}

	return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

func convertToDuration(src, dst reflect.Value) error {
	switch src.Kind() {
	case reflect.String:
		duration, err := time.ParseDuration(src.String())
		if err != nil {
			return errors.Wrapf(err, "failed to parse duration %q", src.String())
		}
		dst.SetInt(int64(duration))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(src.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetInt(int64(src.Uint()))
	case reflect.Float32, reflect.Float64:
		// 浮点数视为秒
		dst.SetInt(int64(src.Float() * float64(time.Second)))
	default:
		return errors.Errorf("cannot convert %v to time.Duration", src.Type())
	}
	return nil
}

func convertToStruct(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to struct %v", src.Type(), dst.Type())
	}

	keys := map[string]reflect.Value{}
	for _, key := range src.MapKeys() {
		keys[strings.ToLower(key.String())] = key
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		fieldValue := dst.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		name := fieldKey(field)
		if name == "-" {
			continue
		}
		key, ok := keys[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := convertValue(src.MapIndex(key).Interface(), fieldValue); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to map", src.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, key := range src.MapKeys() {
		value := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), value); err != nil {
			return err
		}
		dstKey := reflect.New(dst.Type().Key()).Elem()
		if err := convertValue(key.Interface(), dstKey); err != nil {
			return err
		}
		dst.SetMapIndex(dstKey, value)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() == reflect.String {
		return setDefaultValue(dst, src.String())
	}
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %v to slice", src.Type())
	}
	slice := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := convertValue(src.Index(i).Interface(), slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}

// fieldKey 返回字段在配置中的键名
func fieldKey(field reflect.StructField) string {
	if tag := field.Tag.Get("cfg"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return field.Name
}
