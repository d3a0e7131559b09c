package ref

import (
	"reflect"
	"sync"

	"github.com/hatlonely/ormx/cfg"
	"github.com/pkg/errors"
)

// TypeOptions 通过命名空间和类型名描述一个可构造对象，Options 作为构造参数
// Options 可以是构造函数参数类型本身，也可以是从配置文件解码出的 map
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type constructor struct {
	originalFunc any
	newFunc      reflect.Value
	hasOptions   bool
	returnsError bool
}

func newConstructor(newFunc any) (*constructor, error) {
	funcValue := reflect.ValueOf(newFunc)
	if funcValue.Kind() != reflect.Func {
		return nil, errors.New("newFunc must be a function")
	}

	funcType := funcValue.Type()
	if funcType.NumIn() > 1 {
		return nil, errors.Errorf("newFunc must have 0 or 1 input parameters, got %d", funcType.NumIn())
	}
	if funcType.NumOut() != 1 && funcType.NumOut() != 2 {
		return nil, errors.Errorf("newFunc must have 1 or 2 return values, got %d", funcType.NumOut())
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	return &constructor{
		originalFunc: newFunc,
		newFunc:      funcValue,
		hasOptions:   funcType.NumIn() == 1,
		returnsError: funcType.NumOut() == 2,
	}, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.hasOptions {
		arg, err := c.convertOptions(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.newFunc.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// convertOptions 把 options 转换为构造函数的参数类型
func (c *constructor) convertOptions(options any) (reflect.Value, error) {
	paramType := c.newFunc.Type().In(0)

	if options == nil {
		return reflect.Zero(paramType), nil
	}

	value := reflect.ValueOf(options)
	if value.Type().AssignableTo(paramType) {
		return value, nil
	}

	// 配置文件解码得到的 map 通过 cfg 转换并补齐默认值
	target := paramType
	if paramType.Kind() == reflect.Ptr {
		target = paramType.Elem()
	}
	ptr := reflect.New(target)
	if err := cfg.ConvertTo(options, ptr.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "failed to convert options to %v", paramType)
	}
	if target.Kind() == reflect.Struct {
		if err := cfg.SetDefaults(ptr.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "failed to set defaults for %v", paramType)
		}
	}
	if paramType.Kind() == reflect.Ptr {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

var nameConstructorMap sync.Map

func isSameFunc(func1, func2 any) bool {
	return reflect.ValueOf(func1).Pointer() == reflect.ValueOf(func2).Pointer()
}

// Register 注册构造函数，同一个键重复注册相同函数是幂等的
func Register(namespace string, type_ string, newFunc any) error {
	key := namespace + ":" + type_

	c, err := newConstructor(newFunc)
	if err != nil {
		return errors.WithMessagef(err, "failed to register %s", key)
	}

	if existing, loaded := nameConstructorMap.LoadOrStore(key, c); loaded {
		if !isSameFunc(existing.(*constructor).originalFunc, newFunc) {
			return errors.Errorf("constructor for %s already registered with different function", key)
		}
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名注册构造函数
func RegisterT[T any](newFunc any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, newFunc)
}

func MustRegister(namespace string, type_ string, newFunc any) {
	if err := Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](newFunc any) {
	if err := RegisterT[T](newFunc); err != nil {
		panic(err)
	}
}

// New 根据命名空间和类型名构造对象
func New(namespace string, type_ string, options any) (any, error) {
	key := namespace + ":" + type_
	value, ok := nameConstructorMap.Load(key)
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", key)
	}
	return value.(*constructor).new(options)
}

// NewWithOptions 根据 TypeOptions 构造对象
func NewWithOptions(options *TypeOptions) (any, error) {
	if options == nil {
		return nil, errors.New("type options cannot be nil")
	}
	return New(options.Namespace, options.Type, options.Options)
}

func NewT[T any](options any) (T, error) {
	var zero T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return zero, err
	}

	obj, err := New(namespace, type_, options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object is not of type %T", zero)
	}
	return result, nil
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
