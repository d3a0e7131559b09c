package cfg

import (
	"os"

	"github.com/hatlonely/ormx/cfg/validator"
	"github.com/pkg/errors"
)

type loadOptions struct {
	format    string
	envPrefix string
	key       string
}

// Option 配置加载选项
type Option func(*loadOptions)

// WithFormat 指定配置格式，不指定时根据扩展名推断
func WithFormat(format string) Option {
	return func(o *loadOptions) {
		o.format = format
	}
}

// WithEnvPrefix 启用环境变量覆盖
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithKey 只加载配置中的某个子节点，例如 "pool"
func WithKey(key string) Option {
	return func(o *loadOptions) {
		o.key = key
	}
}

// Load 从文件加载配置
// 处理顺序：解码 -> 转换 -> 环境变量覆盖 -> def 默认值 -> validate 校验
func Load(path string, object any, opts ...Option) error {
	options := &loadOptions{format: FormatFromPath(path)}
	for _, opt := range opts {
		opt(options)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	return parse(data, object, options)
}

// Parse 从内存数据加载配置，format 必须通过 WithFormat 指定
func Parse(data []byte, object any, opts ...Option) error {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return parse(data, object, options)
}

func parse(data []byte, object any, options *loadOptions) error {
	values, err := Decode(options.format, data)
	if err != nil {
		return err
	}

	var src any = values
	if options.key != "" {
		src = values[options.key]
	}

	if err := ConvertTo(src, object); err != nil {
		return errors.WithMessage(err, "failed to convert config")
	}
	if options.envPrefix != "" {
		if err := ApplyEnv(options.envPrefix, object); err != nil {
			return errors.WithMessage(err, "failed to apply env")
		}
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "failed to set defaults")
	}
	if err := validator.ValidateStruct(object); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	return nil
}
