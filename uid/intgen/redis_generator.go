package intgen

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hatlonely/ormx/log"
	"github.com/hatlonely/ormx/log/logger"
	"github.com/hatlonely/ormx/ref"
)

type RedisGeneratorOptions struct {
	Addr     string        `cfg:"addr" def:"localhost:6379"`
	Password string        `cfg:"password"`
	DB       int           `cfg:"db"`
	Key      string        `cfg:"key" def:"ormx:id"`
	Timeout  time.Duration `cfg:"timeout" def:"3s"`

	Logger *ref.TypeOptions `cfg:"logger"`
}

// RedisGenerator 以 INCR 维护一个跨进程共享的自增计数器，适合做表的整数主键
// Redis 不可用时退化为本地时间戳序列号并打印 warn 日志
type RedisGenerator struct {
	client   *redis.Client
	key      string
	timeout  time.Duration
	fallback *TimestampSeqGenerator
	logger   logger.Logger
}

func NewRedisGeneratorWithOptions(options *RedisGeneratorOptions) (*RedisGenerator, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}
	if options.Addr == "" || options.Key == "" {
		return nil, errors.New("addr and key are required")
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}

	return &RedisGenerator{
		client: redis.NewClient(&redis.Options{
			Addr:     options.Addr,
			Password: options.Password,
			DB:       options.DB,
		}),
		key:      options.Key,
		timeout:  timeout,
		fallback: NewTimestampSeqGenerator(),
		logger:   l.With("key", options.Key),
	}, nil
}

// GenerateContext 返回计数器的下一个值
func (g *RedisGenerator) GenerateContext(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	id, err := g.client.Incr(ctx, g.key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "redis incr %s failed", g.key)
	}
	return id, nil
}

func (g *RedisGenerator) Generate() int64 {
	id, err := g.GenerateContext(context.Background())
	if err != nil {
		id = g.fallback.Generate()
		g.logger.Warn("redis unavailable, fall back to timestamp sequence", "error", err, "id", id)
	}
	return id
}

func (g *RedisGenerator) Close() error {
	return g.client.Close()
}
