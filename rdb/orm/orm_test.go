package orm

import (
	"bytes"
	"context"
	"sync"

	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb/executor"
	"github.com/hatlonely/ormx/rdb/field"
	"github.com/hatlonely/ormx/rdb/schema"
)

type call struct {
	query      string
	args       []any
	limit      int
	autocommit bool
}

// fakeExecutor 记录收到的语句并返回预设结果
type fakeExecutor struct {
	mu        sync.Mutex
	queries   []call
	mutations []call

	rows     []executor.Row
	affected int64
	err      error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{affected: 1}
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args []any, limit int) ([]executor.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, call{query: query, args: args, limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeExecutor) Mutate(ctx context.Context, query string, args []any, autocommit bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, call{query: query, args: args, autocommit: autocommit})
	if f.err != nil {
		return 0, f.err
	}
	return f.affected, nil
}

func (f *fakeExecutor) lastQuery() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeExecutor) lastMutation() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations[len(f.mutations)-1]
}

func newUserMeta() *schema.Metadata {
	return schema.NewBuilder("User").
		Add("id", field.String(field.PrimaryKey())).
		Add("name", field.String()).
		Add("email", field.String()).
		MustBuild()
}

func newBufferLogger() (logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l, err := logger.NewSLogWithWriter(&buf, &logger.SLogOptions{Level: "debug"})
	if err != nil {
		panic(err)
	}
	return l, &buf
}
