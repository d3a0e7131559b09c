package pool

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hatlonely/ormx/cfg"
	"github.com/hatlonely/ormx/cfg/validator"
	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/rdb"
)

// Placeholder 驱动原生的参数占位符风格
type Placeholder int

const (
	// Question 使用 ?（mysql, sqlite3）
	Question Placeholder = iota
	// Dollar 使用 $1, $2, ...
	Dollar
)

type Options struct {
	Driver string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3"`
	// 指定 DSN 时忽略 host/port/user/password/database/charset
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     int    `cfg:"port" def:"3306"`
	User     string `cfg:"user"`
	Password string `cfg:"password"`
	Database string `cfg:"database" validate:"required_without=DSN"`
	Charset  string `cfg:"charset" def:"utf8"`
	// 作为 mysql 会话变量 autocommit 下发
	Autocommit *bool `cfg:"autocommit" def:"true"`

	MaxSize         int           `cfg:"maxSize" def:"10" validate:"gte=1,gtefield=MinSize"`
	MinSize         int           `cfg:"minSize" def:"1" validate:"gte=0"`
	ConnMaxLifetime time.Duration `cfg:"connMaxLifetime"`
}

// Pool 进程级共享的连接池，显式创建和关闭，注入给 executor 使用
type Pool struct {
	db          *sql.DB
	driver      string
	placeholder Placeholder
	logger      logger.Logger

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPoolWithOptions(ctx context.Context, options *Options, opts ...Option) (*Pool, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}
	o := *options
	if err := cfg.SetDefaults(&o); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(&o); err != nil {
		return nil, errors.WithMessage(err, "invalid pool options")
	}

	dsn, err := buildDSN(&o)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(o.Driver, dsn)
	if err != nil {
		return nil, &rdb.ConnectionError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(o.MaxSize)
	db.SetMaxIdleConns(o.MaxSize)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	p := NewPoolFromDB(db, o.Driver, opts...)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &rdb.ConnectionError{Op: "ping", Err: err}
	}
	if err := p.warmUp(ctx, o.MinSize); err != nil {
		_ = db.Close()
		return nil, err
	}

	p.logger.Info("database pool initialized",
		"driver", o.Driver,
		"database", o.Database,
		"maxSize", o.MaxSize,
		"minSize", o.MinSize,
	)
	return p, nil
}

// NewPoolFromDB 包装已打开的 *sql.DB，测试中用来注入 sqlmock
func NewPoolFromDB(db *sql.DB, driver string, opts ...Option) *Pool {
	p := &Pool{
		db:          db,
		driver:      driver,
		placeholder: placeholderOf(driver),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "db_pool")
	return p
}

func placeholderOf(driver string) Placeholder {
	switch driver {
	case "postgres", "pgx":
		return Dollar
	default:
		return Question
	}
}

func buildDSN(o *Options) (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}

	switch o.Driver {
	case "mysql":
		if o.User == "" {
			return "", errors.New("user is required")
		}
		c := mysql.NewConfig()
		c.User = o.User
		c.Passwd = o.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
		c.DBName = o.Database
		c.ParseTime = true
		c.Loc = time.Local
		c.Params = map[string]string{"charset": o.Charset}
		if o.Autocommit != nil {
			if *o.Autocommit {
				c.Params["autocommit"] = "1"
			} else {
				c.Params["autocommit"] = "0"
			}
		}
		return c.FormatDSN(), nil
	case "sqlite3":
		if strings.Contains(o.Database, "?") {
			return o.Database, nil
		}
		return o.Database + "?_busy_timeout=5000", nil
	default:
		return "", errors.Errorf("unsupported driver: %s", o.Driver)
	}
}

// warmUp 预先建立 n 个连接，归还后留在空闲队列中
func (p *Pool) warmUp(ctx context.Context, n int) error {
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	for i := 0; i < n; i++ {
		conn, err := p.db.Conn(ctx)
		if err != nil {
			return &rdb.ConnectionError{Op: "warm up", Err: err}
		}
		conns = append(conns, conn)
	}
	return nil
}

// Acquire 借出一个连接，调用方通过 conn.Close() 归还
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, &rdb.ConnectionError{Op: "acquire", Err: rdb.ErrPoolClosed}
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &rdb.ConnectionError{Op: "acquire", Err: err}
	}
	return conn, nil
}

// Close 关闭空闲连接并等待使用中的连接归还，重复调用只有第一次生效
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("closing database pool")

	return p.db.Close()
}

func (p *Pool) Placeholder() Placeholder {
	return p.placeholder
}

func (p *Pool) Driver() string {
	return p.driver
}

// DB 底层 *sql.DB，用于建表等连接池之外的操作
func (p *Pool) DB() *sql.DB {
	return p.db
}

type Stats struct {
	MaxOpenConnections int           `json:"maxOpenConnections"`
	OpenConnections    int           `json:"openConnections"`
	InUse              int           `json:"inUse"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"waitCount"`
	WaitDuration       time.Duration `json:"waitDuration"`
}

func (p *Pool) Stats() Stats {
	stats := p.db.Stats()
	return Stats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}
