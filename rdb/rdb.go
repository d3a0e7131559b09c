package rdb

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSchema     = errors.New("schema error")
	ErrConnection = errors.New("connection error")

	ErrDuplicatePrimaryKey = errors.New("duplicate primary key")
	ErrMissingPrimaryKey   = errors.New("missing primary key")
	ErrDuplicateField      = errors.New("duplicate field")
	ErrInvalidField        = errors.New("invalid field")
	ErrUnsupportedType     = errors.New("unsupported type")

	ErrPoolClosed       = errors.New("pool is closed")
	ErrInvalidLimit     = errors.New("invalid limit value")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrNothingToUpdate  = errors.New("nothing to update")
)

// SchemaError 记录类型注册失败，记录类型在修复声明前不可用
type SchemaError struct {
	Model string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s: %v: %s", e.Model, e.Err, e.Field)
	}
	return fmt.Sprintf("schema %s: %v", e.Model, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// ConnectionError 连接池无法建立或无法获取连接
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
