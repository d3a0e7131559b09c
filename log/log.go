package log

import (
	"sync/atomic"

	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/ref"
	"github.com/pkg/errors"
)

var defaultLogger atomic.Value

func init() {
	// 默认向标准输出打印 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(slog)
}

func Default() logger.Logger {
	return defaultLogger.Load().(*holder).logger
}

func SetDefault(l logger.Logger) {
	if l == nil {
		return
	}
	defaultLogger.Store(&holder{logger: l})
}

type holder struct {
	logger logger.Logger
}

// NewLoggerWithOptions 根据配置创建日志器，未配置时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}

	obj, err := ref.NewWithOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%s:%s does not implement Logger interface", options.Namespace, options.Type)
	}
	return l, nil
}
