package orm

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb/executor"
	"github.com/hatlonely/ormx/rdb/field"
	"github.com/hatlonely/ormx/rdb/pool"
	"github.com/hatlonely/ormx/ref"
	"github.com/hatlonely/ormx/uid/intgen"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type article struct {
	ID        string    `orm:"id,pk,generator=uuid"`
	Title     string    `orm:"title"`
	Views     int64     `orm:"views"`
	Rating    float64   `orm:"rating,default=2.5"`
	Published bool      `orm:"published"`
	CreatedAt time.Time `orm:"created_at,generator=now"`
}

func (article) TableName() string {
	return "articles"
}

type setting struct {
	Key     string   `orm:"key,pk"`
	Enabled *bool    `orm:"enabled,default=true"`
	Weight  *float64 `orm:"weight,default=1.5"`
}

func (setting) TableName() string {
	return "settings"
}

func newSqliteExecutor(t *testing.T, maxSize int, ddl ...string) *executor.Executor {
	p, err := pool.NewPoolWithOptions(context.Background(), &pool.Options{
		Driver:   "sqlite3",
		Database: filepath.Join(t.TempDir(), "orm.db"),
		MaxSize:  maxSize,
	}, pool.WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	exec := executor.NewExecutor(p, executor.WithLogger(logger.Discard()))
	for _, stmt := range ddl {
		_, err := exec.Mutate(context.Background(), stmt, nil, true)
		require.NoError(t, err)
	}
	return exec
}

const (
	userDDL    = "CREATE TABLE `User` (`id` VARCHAR(100) PRIMARY KEY, `name` VARCHAR(100), `email` VARCHAR(100))"
	settingDDL = "CREATE TABLE `settings` (`key` VARCHAR(100) PRIMARY KEY, `enabled` BOOLEAN, `weight` REAL)"
	articleDDL = "CREATE TABLE `articles` (`id` CHAR(36) PRIMARY KEY, `title` VARCHAR(100), `views` BIGINT, `rating` REAL, `published` BOOLEAN, `created_at` DATETIME)"
)

func TestModelWithSqlite(t *testing.T) {
	Convey("sqlite 上的 User 模型", t, func() {
		exec := newSqliteExecutor(t, 4, userDDL)
		users := NewModel(newUserMeta(), exec, WithLogger(logger.Discard()))
		ctx := context.Background()

		So(users.New(map[string]any{"id": "1", "name": "A", "email": "a@x.com"}).Save(ctx), ShouldBeNil)

		Convey("保存后按主键查询", func() {
			u, err := users.Find(ctx, "1")
			So(err, ShouldBeNil)
			So(u, ShouldNotBeNil)
			So(u.GetValue("name"), ShouldEqual, "A")
			So(u.GetValue("email"), ShouldEqual, "a@x.com")

			n, err := users.FindNumber(ctx, "count(*)")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(1))
		})

		Convey("更新后重新查询", func() {
			u, err := users.Find(ctx, "1")
			So(err, ShouldBeNil)
			u.Set("name", "B")
			So(u.Update(ctx), ShouldBeNil)

			u, err = users.Find(ctx, "1")
			So(err, ShouldBeNil)
			So(u.GetValue("name"), ShouldEqual, "B")
			So(u.GetValue("email"), ShouldEqual, "a@x.com")
		})

		Convey("Update 把未设置的字段写成 NULL", func() {
			So(users.New(map[string]any{"id": "1", "name": "C"}).Update(ctx), ShouldBeNil)
			u, err := users.Find(ctx, "1")
			So(err, ShouldBeNil)
			So(u.GetValue("email"), ShouldBeNil)
		})

		Convey("删除后查询不到", func() {
			So(users.New(map[string]any{"id": "1"}).Remove(ctx), ShouldBeNil)
			u, err := users.Find(ctx, "1")
			So(err, ShouldBeNil)
			So(u, ShouldBeNil)

			n, err := users.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(0))
		})

		Convey("条件、排序和分页", func() {
			for i := 2; i <= 6; i++ {
				So(users.New(map[string]any{"id": fmt.Sprint(i), "name": fmt.Sprintf("user%d", i)}).Save(ctx), ShouldBeNil)
			}

			records, err := users.FindAll(ctx, Where("`email` IS NULL"), OrderBy("`id` DESC"), Page(1, 2))
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
			So(records[0].GetValue("id"), ShouldEqual, "5")
			So(records[1].GetValue("id"), ShouldEqual, "4")

			records, err = users.FindAll(ctx, Where("`name` LIKE ?", "user%"), Limit(3))
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 3)

			n, err := users.Count(ctx, Where("`id` > ?", "3"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(3))
		})

		Convey("主键冲突返回驱动错误", func() {
			err := users.New(map[string]any{"id": "1", "name": "dup"}).Save(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestConcurrentSave(t *testing.T) {
	exec := newSqliteExecutor(t, 2, userDDL)
	users := NewModel(newUserMeta(), exec, WithLogger(logger.Discard()))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- users.New(map[string]any{"id": fmt.Sprint(i), "name": "concurrent"}).Save(ctx)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := users.Count(ctx, Where("`name`=?", "concurrent"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
}

func TestTable(t *testing.T) {
	Convey("Table[article]", t, func() {
		exec := newSqliteExecutor(t, 4, articleDDL)
		articles, err := NewTable[article](exec, WithLogger(logger.Discard()))
		So(err, ShouldBeNil)
		ctx := context.Background()

		a := &article{Title: "hello", Views: 3, Published: true}
		So(articles.Save(ctx, a), ShouldBeNil)

		Convey("默认值和生成值写回结构体", func() {
			So(len(a.ID), ShouldEqual, 36)
			So(a.Rating, ShouldEqual, 2.5)
			So(a.CreatedAt.IsZero(), ShouldBeFalse)
		})

		Convey("按主键查询", func() {
			found, err := articles.Find(ctx, a.ID)
			So(err, ShouldBeNil)
			So(found, ShouldNotBeNil)
			So(found.ID, ShouldEqual, a.ID)
			So(found.Title, ShouldEqual, "hello")
			So(found.Views, ShouldEqual, int64(3))
			So(found.Rating, ShouldEqual, 2.5)
			So(found.Published, ShouldBeTrue)
			So(found.CreatedAt.Equal(a.CreatedAt), ShouldBeTrue)

			missing, err := articles.Find(ctx, "missing")
			So(err, ShouldBeNil)
			So(missing, ShouldBeNil)
		})

		Convey("显式设置的值不会被默认值覆盖", func() {
			b := &article{ID: "fixed", Title: "world", Rating: 4}
			So(articles.Save(ctx, b), ShouldBeNil)
			So(b.ID, ShouldEqual, "fixed")
			So(b.Rating, ShouldEqual, 4.0)

			found, err := articles.Find(ctx, "fixed")
			So(err, ShouldBeNil)
			So(found.Published, ShouldBeFalse)
		})

		Convey("FindAll 和 Count", func() {
			for i := 0; i < 4; i++ {
				So(articles.Save(ctx, &article{Title: fmt.Sprintf("t%d", i), Views: int64(i)}), ShouldBeNil)
			}

			list, err := articles.FindAll(ctx, Where("`views` < ?", 3), OrderBy("`views`"), Limit(2))
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].Views, ShouldEqual, int64(0))
			So(list[1].Views, ShouldEqual, int64(1))

			n, err := articles.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(5))

			total, err := articles.FindNumber(ctx, "sum(`views`)")
			So(err, ShouldBeNil)
			So(total, ShouldEqual, int64(9))
		})

		Convey("更新和删除", func() {
			a.Title = "updated"
			a.Views = 10
			So(articles.Update(ctx, a), ShouldBeNil)

			found, err := articles.Find(ctx, a.ID)
			So(err, ShouldBeNil)
			So(found.Title, ShouldEqual, "updated")
			So(found.Views, ShouldEqual, int64(10))

			So(articles.Remove(ctx, a), ShouldBeNil)
			found, err = articles.Find(ctx, a.ID)
			So(err, ShouldBeNil)
			So(found, ShouldBeNil)
		})

		Convey("Scan 需要同一结构体类型", func() {
			r, err := articles.Model().Find(ctx, a.ID)
			So(err, ShouldBeNil)

			var other struct{ ID string }
			So(r.Scan(&other), ShouldNotBeNil)
			So(r.Scan(article{}), ShouldNotBeNil)

			var dest article
			So(r.Scan(&dest), ShouldBeNil)
			So(dest.Title, ShouldEqual, "hello")
		})
	})
}

func TestTableZeroValueWithDefault(t *testing.T) {
	Convey("声明了默认值的字段写入零值", t, func() {
		ctx := context.Background()

		Convey("非指针字段的零值按未设置处理", func() {
			exec := newSqliteExecutor(t, 2, articleDDL)
			articles := MustNewTable[article](exec, WithLogger(logger.Discard()))

			a := &article{ID: "zero", Title: "zero rating", Rating: 0}
			So(articles.Save(ctx, a), ShouldBeNil)
			So(a.Rating, ShouldEqual, 2.5)

			found, err := articles.Find(ctx, "zero")
			So(err, ShouldBeNil)
			So(found.Rating, ShouldEqual, 2.5)
		})

		Convey("指针字段为 nil 时取默认值", func() {
			exec := newSqliteExecutor(t, 2, settingDDL)
			settings := MustNewTable[setting](exec, WithLogger(logger.Discard()))

			s := &setting{Key: "default"}
			So(settings.Save(ctx, s), ShouldBeNil)
			So(s.Enabled, ShouldNotBeNil)
			So(*s.Enabled, ShouldBeTrue)
			So(s.Weight, ShouldNotBeNil)
			So(*s.Weight, ShouldEqual, 1.5)

			found, err := settings.Find(ctx, "default")
			So(err, ShouldBeNil)
			So(*found.Enabled, ShouldBeTrue)
			So(*found.Weight, ShouldEqual, 1.5)
		})

		Convey("指针字段指向零值时写入零值", func() {
			exec := newSqliteExecutor(t, 2, settingDDL)
			settings := MustNewTable[setting](exec, WithLogger(logger.Discard()))

			disabled, weight := false, 0.0
			s := &setting{Key: "explicit", Enabled: &disabled, Weight: &weight}
			So(settings.Save(ctx, s), ShouldBeNil)
			So(*s.Enabled, ShouldBeFalse)
			So(*s.Weight, ShouldEqual, 0.0)

			found, err := settings.Find(ctx, "explicit")
			So(err, ShouldBeNil)
			So(found.Enabled, ShouldNotBeNil)
			So(*found.Enabled, ShouldBeFalse)
			So(found.Weight, ShouldNotBeNil)
			So(*found.Weight, ShouldEqual, 0.0)
		})
	})
}

func TestNewTableErrors(t *testing.T) {
	exec := newFakeExecutor()

	_, err := NewTable[int](exec)
	assert.Error(t, err)

	type badRecord struct {
		ID    string `orm:"id,pk"`
		Items []string
	}
	_, err = NewTable[badRecord](exec)
	assert.Error(t, err)

	type noKey struct {
		Name string
	}
	assert.Panics(t, func() { MustNewTable[noKey](exec) })
}

func TestMutateInTransaction(t *testing.T) {
	Convey("关闭 autocommit 时在事务中执行", t, func() {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		So(err, ShouldBeNil)
		defer db.Close()

		p := pool.NewPoolFromDB(db, "sqlmock", pool.WithLogger(logger.Discard()))
		exec := executor.NewExecutor(p, executor.WithLogger(logger.Discard()))
		users := NewModel(newUserMeta(), exec, WithAutocommit(false), WithLogger(logger.Discard()))
		ctx := context.Background()

		Convey("执行成功后提交", func() {
			mock.ExpectBegin()
			mock.ExpectExec("DELETE FROM `User` WHERE `id`=?").WithArgs("1").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			So(users.New(map[string]any{"id": "1"}).Remove(ctx), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("执行失败时回滚并返回原始错误", func() {
			boom := errors.New("constraint failed")
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE `User` SET `name`=?, `email`=? WHERE `id`=?").WithArgs("A", nil, "1").WillReturnError(boom)
			mock.ExpectRollback()

			err := users.New(map[string]any{"id": "1", "name": "A"}).Update(ctx)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestRegisterIntGeneratorWithOptions(t *testing.T) {
	mr := miniredis.RunT(t)

	err := RegisterIntGeneratorWithOptions("orm_test_redis", &ref.TypeOptions{
		Namespace: "github.com/hatlonely/ormx/uid/intgen",
		Type:      "RedisGenerator",
		Options:   map[string]any{"addr": mr.Addr(), "key": "orm:test"},
	})
	require.NoError(t, err)

	gen, ok := field.LookupGenerator("orm_test_redis")
	require.True(t, ok)
	assert.Equal(t, int64(1), gen())
	assert.Equal(t, int64(2), gen())
	mr.CheckGet(t, "orm:test", "2")

	f := field.Integer(field.PrimaryKey(), field.WithGeneratorName("orm_test_redis"))
	assert.NoError(t, f.Validate())
	assert.Equal(t, int64(3), f.Default().Resolve())

	// 重名
	assert.Error(t, RegisterIntGeneratorWithOptions("orm_test_redis", &ref.TypeOptions{
		Namespace: "github.com/hatlonely/ormx/uid/intgen",
		Type:      "TimestampSeqGenerator",
	}))
	// 类型不是整数生成器
	assert.Error(t, RegisterIntGeneratorWithOptions("orm_test_wrong_kind", &ref.TypeOptions{
		Namespace: "github.com/hatlonely/ormx/uid/strgen",
		Type:      "UUIDGenerator",
	}))
	assert.Error(t, RegisterIntGeneratorWithOptions("orm_test_missing", &ref.TypeOptions{Namespace: "missing", Type: "Missing"}))
	_, ok = field.LookupGenerator("orm_test_wrong_kind")
	assert.False(t, ok)

	var _ intgen.IntGenerator = (*intgen.RedisGenerator)(nil)
}

func TestRegisterStrGeneratorWithOptions(t *testing.T) {
	err := RegisterStrGeneratorWithOptions("orm_test_uuid_hex", &ref.TypeOptions{
		Namespace: "github.com/hatlonely/ormx/uid/strgen",
		Type:      "UUIDGenerator",
		Options:   map[string]any{"version": "v7"},
	})
	require.NoError(t, err)

	gen, ok := field.LookupGenerator("orm_test_uuid_hex")
	require.True(t, ok)
	id, ok := gen().(string)
	require.True(t, ok)
	assert.Len(t, id, 32)

	assert.Error(t, RegisterStrGeneratorWithOptions("orm_test_str_wrong_kind", &ref.TypeOptions{
		Namespace: "github.com/hatlonely/ormx/uid/intgen",
		Type:      "TimestampSeqGenerator",
	}))
}

func TestBuiltinGenerators(t *testing.T) {
	for _, name := range []string{"uuid", "uuid7", "snowflake", "timestamp_seq", "now"} {
		gen, ok := field.LookupGenerator(name)
		require.True(t, ok, name)
		assert.NotNil(t, gen(), name)
	}

	gen, _ := field.LookupGenerator("snowflake")
	assert.Less(t, gen().(int64), gen().(int64))
}
