package cfg

import (
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ApplyEnv 用环境变量覆盖结构体字段
// 键名由前缀和 cfg 键名的大写下划线形式拼接，嵌套结构体逐层追加，
// 例如前缀 ORMX 下的 pool.maxSize 对应 ORMX_POOL_MAX_SIZE
func ApplyEnv(prefix string, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return applyEnv(strings.TrimSuffix(prefix, "_"), rv.Elem())
}

func applyEnv(prefix string, rv reflect.Value) error {
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)
		if !fieldValue.CanSet() {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}

		key := envKey(name)
		if prefix != "" {
			key = prefix + "_" + key
		}

		if fieldValue.Kind() == reflect.Struct && fieldValue.Type() != durationType {
			if err := applyEnv(key, fieldValue); err != nil {
				return err
			}
			continue
		}

		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := convertValue(value, fieldValue); err != nil {
			return errors.WithMessagef(err, "env %s", key)
		}
	}
	return nil
}

// envKey 将 camelCase 转换为 CAMEL_CASE
func envKey(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteByte('_')
		}
		if r == '-' || r == '.' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
