package strgen

import (
	"github.com/hatlonely/ormx/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[UUIDGenerator](NewUUIDGeneratorWithOptions)
}

// StrGenerator 生成字符串 id
type StrGenerator interface {
	Generate() string
}

// NewStrGeneratorWithOptions 通过 ref 注册表创建字符串生成器
func NewStrGeneratorWithOptions(options *ref.TypeOptions) (StrGenerator, error) {
	obj, err := ref.NewWithOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithOptions failed")
	}
	generator, ok := obj.(StrGenerator)
	if !ok || generator == nil {
		return nil, errors.Errorf("%T is not a StrGenerator", obj)
	}
	return generator, nil
}
