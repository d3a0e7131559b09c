package field

// Generator 无参默认值生成函数
type Generator func() any

// Default 字段默认值，Static 或 Generated 二选一，零值表示没有默认值（nil）
type Default struct {
	value    any
	generate Generator
}

func Static(value any) Default {
	return Default{value: value}
}

func Generated(fn Generator) Default {
	return Default{generate: fn}
}

func (d Default) IsGenerated() bool {
	return d.generate != nil
}

// IsNil 没有声明任何默认值
func (d Default) IsNil() bool {
	return d.generate == nil && d.value == nil
}

// Resolve 生成器每次调用都会重新执行
func (d Default) Resolve() any {
	if d.generate != nil {
		return d.generate()
	}
	return d.value
}
