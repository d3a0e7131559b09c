package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/cfg"
	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb/executor"
	"github.com/hatlonely/ormx/rdb/orm"
	"github.com/hatlonely/ormx/rdb/pool"
	"github.com/hatlonely/ormx/ref"
)

var Version = "dev"

type Options struct {
	Logger     *ref.TypeOptions `cfg:"logger"`
	Pool       pool.Options     `cfg:"pool"`
	Executor   executor.Options `cfg:"executor"`
	Generators GeneratorOptions `cfg:"generators"`
	Autocommit *bool            `cfg:"autocommit" def:"true"`
}

// GeneratorOptions 按名字注册的 id 生成器，可以在 orm tag 中通过 generator=<name> 引用
type GeneratorOptions struct {
	Int map[string]ref.TypeOptions `cfg:"int"`
	Str map[string]ref.TypeOptions `cfg:"str"`
}

type User struct {
	ID        int64     `orm:"id,pk,generator=snowflake"`
	Name      string    `orm:"name"`
	Email     string    `orm:"email,size=255"`
	Admin     bool      `orm:"admin"`
	CreatedAt time.Time `orm:"created_at,generator=now"`
}

func (User) TableName() string {
	return "users"
}

const createUsers = "CREATE TABLE IF NOT EXISTS `users` (`id` BIGINT PRIMARY KEY, `name` VARCHAR(100), `email` VARCHAR(255), `admin` BOOLEAN, `created_at` DATETIME)"

func main() {
	configPath := flag.String("c", "config/ormx-demo.yaml", "config file path")
	version := flag.Bool("v", false, "print version")
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	var options Options
	if err := cfg.Load(configPath, &options, cfg.WithEnvPrefix("ORMX")); err != nil {
		return errors.WithMessage(err, "load config failed")
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return errors.WithMessage(err, "create logger failed")
	}
	log.SetDefault(l)

	for name, generator := range options.Generators.Int {
		if err := orm.RegisterIntGeneratorWithOptions(name, &generator); err != nil {
			return err
		}
	}
	for name, generator := range options.Generators.Str {
		if err := orm.RegisterStrGeneratorWithOptions(name, &generator); err != nil {
			return err
		}
	}

	p, err := pool.NewPoolWithOptions(ctx, &options.Pool, pool.WithLogger(l))
	if err != nil {
		return err
	}
	defer p.Close()

	exec, err := executor.NewExecutorWithOptions(p, &options.Executor)
	if err != nil {
		return err
	}
	if _, err := exec.Mutate(ctx, createUsers, nil, true); err != nil {
		return errors.WithMessage(err, "create table failed")
	}

	users, err := orm.NewTable[User](exec, orm.WithLogger(l), orm.WithAutocommit(*options.Autocommit))
	if err != nil {
		return err
	}
	return demo(ctx, users, l)
}

func demo(ctx context.Context, users *orm.Table[User], l logger.Logger) error {
	u := &User{Name: "hatlonely", Email: "hatlonely@example.com"}
	if err := users.Save(ctx, u); err != nil {
		return errors.WithMessage(err, "save failed")
	}
	l.Info("user saved", "id", u.ID, "createdAt", u.CreatedAt)

	found, err := users.Find(ctx, u.ID)
	if err != nil {
		return errors.WithMessage(err, "find failed")
	}
	if found == nil {
		return errors.Errorf("user %d not found after save", u.ID)
	}
	l.Info("user found", "id", found.ID, "name", found.Name, "email", found.Email)

	n, err := users.Count(ctx)
	if err != nil {
		return errors.WithMessage(err, "count failed")
	}
	l.Info("user count", "count", n)

	found.Admin = true
	if err := users.Update(ctx, found); err != nil {
		return errors.WithMessage(err, "update failed")
	}
	admins, err := users.FindAll(ctx, orm.Where("`admin`=?", true), orm.OrderBy("`id` DESC"), orm.Limit(10))
	if err != nil {
		return errors.WithMessage(err, "find all failed")
	}
	l.Info("admins", "count", len(admins))

	if err := users.Remove(ctx, found); err != nil {
		return errors.WithMessage(err, "remove failed")
	}
	l.Info("user removed", "id", found.ID)
	return nil
}
