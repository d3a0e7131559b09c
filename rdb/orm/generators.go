package orm

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/rdb/field"
	"github.com/hatlonely/ormx/ref"
	"github.com/hatlonely/ormx/uid"
	"github.com/hatlonely/ormx/uid/intgen"
	"github.com/hatlonely/ormx/uid/strgen"
)

// 内置的命名生成器，可以在 orm tag 中通过 generator=<name> 引用
func init() {
	uuid4, _ := strgen.NewUUIDGeneratorWithOptions(&strgen.UUIDGeneratorOptions{Version: "v4", WithHyphens: true})
	field.MustRegisterGenerator("uuid", func() any { return uuid4.Generate() })

	uuid7 := uid.NewStrGenerator()
	field.MustRegisterGenerator("uuid7", func() any { return uuid7.Generate() })

	snowflake := uid.NewIntGenerator()
	field.MustRegisterGenerator("snowflake", func() any { return snowflake.Generate() })

	seq := intgen.NewTimestampSeqGenerator()
	field.MustRegisterGenerator("timestamp_seq", func() any { return seq.Generate() })

	field.MustRegisterGenerator("now", func() any { return time.Now() })
}

// RegisterIntGeneratorWithOptions 通过 ref 构造整数 id 生成器并注册为命名生成器
// 例如 {namespace: github.com/hatlonely/ormx/uid/intgen, type: RedisGenerator, options: {addr: ...}}
func RegisterIntGeneratorWithOptions(name string, options *ref.TypeOptions) error {
	g, err := uid.NewIntGeneratorWithOptions(options)
	if err != nil {
		return errors.WithMessagef(err, "failed to create generator %s", name)
	}
	return field.RegisterGenerator(name, func() any { return g.Generate() })
}

// RegisterStrGeneratorWithOptions 通过 ref 构造字符串 id 生成器并注册为命名生成器
func RegisterStrGeneratorWithOptions(name string, options *ref.TypeOptions) error {
	g, err := uid.NewStrGeneratorWithOptions(options)
	if err != nil {
		return errors.WithMessagef(err, "failed to create generator %s", name)
	}
	return field.RegisterGenerator(name, func() any { return g.Generate() })
}
