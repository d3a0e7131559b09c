package field

import (
	"sync"

	"github.com/pkg/errors"
)

var generators sync.Map

// RegisterGenerator 注册命名生成器，供 WithGeneratorName 和 struct tag 引用
func RegisterGenerator(name string, fn Generator) error {
	if name == "" || fn == nil {
		return errors.New("generator name and function are required")
	}
	if _, loaded := generators.LoadOrStore(name, fn); loaded {
		return errors.Errorf("generator %q already registered", name)
	}
	return nil
}

func MustRegisterGenerator(name string, fn Generator) {
	if err := RegisterGenerator(name, fn); err != nil {
		panic(err)
	}
}

func LookupGenerator(name string) (Generator, bool) {
	v, ok := generators.Load(name)
	if !ok {
		return nil, false
	}
	return v.(Generator), true
}
