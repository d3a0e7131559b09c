package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/hatlonely/ormx/rdb"
	"github.com/hatlonely/ormx/rdb/field"
	. "github.com/smartystreets/goconvey/convey"
)

type structUser struct {
	ID        string    `orm:"id,pk,size=36"`
	Name      string    `orm:"name"`
	Email     string    `orm:",size=255"`
	Admin     bool      `orm:"admin,default=false"`
	Score     float64   `orm:"score,default=1.5"`
	Bio       string    `orm:"bio,type=text"`
	CreatedAt time.Time `orm:"created_at"`
	Visits    int       `orm:"visits,default=3"`
	Ignored   string    `orm:"-"`
	internal  string
}

func (structUser) TableName() string {
	return "users"
}

type auditFields struct {
	UpdatedAt *time.Time
}

type structPost struct {
	auditFields
	PostID int64 `orm:",pk"`
	Title  string
}

func init() {
	field.MustRegisterGenerator("schema_test_id", func() any { return "generated" })
}

func TestFor(t *testing.T) {
	Convey("结构体注册", t, func() {
		m, err := For[structUser]()
		So(err, ShouldBeNil)
		So(m.Name(), ShouldEqual, "structUser")
		So(m.Table(), ShouldEqual, "users")
		So(m.PrimaryKey(), ShouldEqual, "id")
		So(m.NonKeyFields(), ShouldResemble, []string{"name", "email", "admin", "score", "bio", "created_at", "visits"})
		So(m.SelectSQL(), ShouldEqual, "SELECT `id`, `name`, `email`, `admin`, `score`, `bio`, `created_at`, `visits` FROM `users`")

		id, _ := m.Field("id")
		So(id.ColumnType(), ShouldEqual, "varchar(36)")
		email, _ := m.Field("email")
		So(email.ColumnType(), ShouldEqual, "varchar(255)")
		bio, _ := m.Field("bio")
		So(bio.Kind(), ShouldEqual, field.KindText)
		createdAt, _ := m.Field("created_at")
		So(createdAt.ColumnType(), ShouldEqual, "datetime")
		score, _ := m.Field("score")
		So(score.Default().Resolve(), ShouldEqual, 1.5)
		visits, _ := m.Field("visits")
		So(visits.Kind(), ShouldEqual, field.KindInteger)
		So(visits.Default().Resolve(), ShouldEqual, int64(3))

		idx, ok := m.FieldIndex("created_at")
		So(ok, ShouldBeTrue)
		So(idx, ShouldResemble, []int{6})
		So(m.Type().Name(), ShouldEqual, "structUser")

		Convey("同一类型只编译一次", func() {
			m2, err := FromStruct(&structUser{})
			So(err, ShouldBeNil)
			So(m2, ShouldEqual, m)
			So(MustFor[structUser](), ShouldEqual, m)
		})
	})

	Convey("嵌入结构体展开", t, func() {
		m, err := For[*structPost]()
		So(err, ShouldBeNil)
		So(m.Table(), ShouldEqual, "structPost")
		So(m.PrimaryKey(), ShouldEqual, "post_id")
		So(m.NonKeyFields(), ShouldResemble, []string{"updated_at", "title"})

		idx, ok := m.FieldIndex("updated_at")
		So(ok, ShouldBeTrue)
		So(idx, ShouldResemble, []int{0, 0})
	})

	Convey("与显式注册得到相同模板", t, func() {
		type Item struct {
			ID    int64   `orm:"id,pk"`
			Name  string  `orm:"name"`
			Price float64 `orm:"price"`
		}
		m1 := MustFor[Item]()
		m2 := NewBuilder("Item").
			Add("id", field.Integer(field.PrimaryKey())).
			Add("name", field.String()).
			Add("price", field.Float()).
			MustBuild()
		So(m1.SelectSQL(), ShouldEqual, m2.SelectSQL())
		So(m1.InsertSQL(), ShouldEqual, m2.InsertSQL())
		So(m1.UpdateSQL(), ShouldEqual, m2.UpdateSQL())
		So(m1.DeleteSQL(), ShouldEqual, m2.DeleteSQL())
	})

	Convey("命名生成器", t, func() {
		type Token struct {
			Value string `orm:"value,pk,generator=schema_test_id"`
		}
		m := MustFor[Token]()
		f, _ := m.Field("value")
		So(f.Default().IsGenerated(), ShouldBeTrue)
		So(f.Default().Resolve(), ShouldEqual, "generated")
	})
}

func TestForErrors(t *testing.T) {
	Convey("结构体注册失败", t, func() {
		type NoKey struct {
			Name string
		}
		type TwoKeys struct {
			A string `orm:"a,pk"`
			B string `orm:"b,pk"`
		}
		type Unsupported struct {
			ID   string `orm:"id,pk"`
			Tags []string
		}
		type BadDefault struct {
			ID int64 `orm:"id,pk,default=abc"`
		}
		type BadOption struct {
			ID int64 `orm:"id,pk,unique"`
		}
		type BadKind struct {
			ID   int64  `orm:"id,pk"`
			Body string `orm:"body,type=blob"`
		}
		type MissingGenerator struct {
			ID string `orm:"id,pk,generator=schema_test_missing"`
		}
		type TextKey struct {
			ID string `orm:"id,pk,type=text"`
		}
		type Duplicated struct {
			ID   int64  `orm:"id,pk"`
			Name string `orm:"name"`
			Nick string `orm:"name"`
		}

		for _, c := range []struct {
			fn  func() (*Metadata, error)
			err error
		}{
			{For[NoKey], rdb.ErrMissingPrimaryKey},
			{For[TwoKeys], rdb.ErrDuplicatePrimaryKey},
			{For[Unsupported], rdb.ErrUnsupportedType},
			{For[BadOption], rdb.ErrInvalidField},
			{For[BadKind], rdb.ErrInvalidField},
			{For[MissingGenerator], rdb.ErrInvalidField},
			{For[TextKey], rdb.ErrInvalidField},
			{For[Duplicated], rdb.ErrDuplicateField},
			{For[BadDefault], rdb.ErrSchema},
		} {
			m, err := c.fn()
			So(m, ShouldBeNil)
			So(errors.Is(err, rdb.ErrSchema), ShouldBeTrue)
			So(errors.Is(err, c.err), ShouldBeTrue)
		}

		_, err := FromStruct(42)
		So(err, ShouldNotBeNil)
		_, err = FromStruct(nil)
		So(err, ShouldNotBeNil)
		So(func() { MustFor[NoKey]() }, ShouldPanic)
	})
}

func TestSnakeCase(t *testing.T) {
	Convey("snakeCase", t, func() {
		So(snakeCase("ID"), ShouldEqual, "id")
		So(snakeCase("UserID"), ShouldEqual, "user_id")
		So(snakeCase("CreatedAt"), ShouldEqual, "created_at")
		So(snakeCase("HTTPServer"), ShouldEqual, "http_server")
		So(snakeCase("name"), ShouldEqual, "name")
	})
}
