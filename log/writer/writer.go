package writer

import (
	"io"

	"github.com/hatlonely/ormx/ref"
)

func init() {
	ref.MustRegisterT[ConsoleWriter](NewConsoleWriterWithOptions)
	ref.MustRegisterT[FileWriter](NewFileWriterWithOptions)
	ref.MustRegisterT[MultiWriter](NewMultiWriterWithOptions)
}

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}
