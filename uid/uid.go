package uid

import (
	"github.com/hatlonely/ormx/ref"
	"github.com/hatlonely/ormx/uid/intgen"
	"github.com/hatlonely/ormx/uid/strgen"
)

func NewIntGeneratorWithOptions(options *ref.TypeOptions) (intgen.IntGenerator, error) {
	return intgen.NewIntGeneratorWithOptions(options)
}

func NewStrGeneratorWithOptions(options *ref.TypeOptions) (strgen.StrGenerator, error) {
	return strgen.NewStrGeneratorWithOptions(options)
}

// NewIntGenerator 默认整数生成器，基于本机 IP 的 snowflake
func NewIntGenerator() intgen.IntGenerator {
	return intgen.NewSnowflakeGeneratorWithOptions(nil)
}

// NewStrGenerator 默认字符串生成器，带连字符的 UUID v7
func NewStrGenerator() strgen.StrGenerator {
	g, _ := strgen.NewUUIDGeneratorWithOptions(&strgen.UUIDGeneratorOptions{Version: "v7", WithHyphens: true})
	return g
}
