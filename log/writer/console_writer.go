package writer

import (
	"io"
	"os"
)

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout"`
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
	target string
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) *ConsoleWriter {
	if options != nil && options.Target == "stderr" {
		return &ConsoleWriter{writer: os.Stderr, target: "stderr"}
	}
	return &ConsoleWriter{writer: os.Stdout, target: "stdout"}
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Close 控制台不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
