package writer

import (
	"io"

	"github.com/hatlonely/ormx/ref"
	"github.com/pkg/errors"
)

// MultiWriterOptions 多输出配置
type MultiWriterOptions struct {
	Writers []ref.TypeOptions `cfg:"writers"`
}

// MultiWriter 把同一条日志写到多个输出器
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriterWithOptions(options *MultiWriterOptions) (*MultiWriter, error) {
	if options == nil || len(options.Writers) == 0 {
		return nil, errors.New("at least one writer is required")
	}

	writers := make([]Writer, 0, len(options.Writers))
	for i := range options.Writers {
		obj, err := ref.NewWithOptions(&options.Writers[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create writer %d", i)
		}
		w, ok := obj.(Writer)
		if !ok {
			return nil, errors.Errorf("writer %d does not implement Writer interface", i)
		}
		writers = append(writers, w)
	}

	return &MultiWriter{writers: writers}, nil
}

// NewMultiWriter 从已有的输出器创建
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	for i, w := range m.writers {
		n, err := w.Write(p)
		if err != nil {
			return n, errors.Wrapf(err, "writer %d failed", i)
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}

func (m *MultiWriter) Close() error {
	var lastErr error
	for i, w := range m.writers {
		if err := w.Close(); err != nil {
			lastErr = errors.Wrapf(err, "failed to close writer %d", i)
		}
	}
	return lastErr
}
