package intgen

import (
	"sync/atomic"
	"time"

	"github.com/hatlonely/ormx/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[TimestampSeqGenerator](NewTimestampSeqGenerator)
	ref.MustRegisterT[SnowflakeGenerator](NewSnowflakeGeneratorWithOptions)
	ref.MustRegisterT[RedisGenerator](NewRedisGeneratorWithOptions)
}

// IntGenerator 生成64位整数 id
type IntGenerator interface {
	Generate() int64
}

// NewIntGeneratorWithOptions 通过 ref 注册表创建整数生成器
func NewIntGeneratorWithOptions(options *ref.TypeOptions) (IntGenerator, error) {
	obj, err := ref.NewWithOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithOptions failed")
	}
	generator, ok := obj.(IntGenerator)
	if !ok || generator == nil {
		return nil, errors.Errorf("%T is not an IntGenerator", obj)
	}
	return generator, nil
}

const (
	sequenceBits = 12
	maxSequence  = (1 << sequenceBits) - 1
)

// clock 以 CAS 维护 "毫秒时间戳 << 12 | 序列号" 状态，同一毫秒内序列号溢出时自旋到下一毫秒
type clock struct {
	state int64
	epoch int64
}

func newClock(epoch int64) *clock {
	return &clock{state: (time.Now().UnixMilli() - epoch) << sequenceBits, epoch: epoch}
}

func (c *clock) next() (int64, int64) {
	for {
		old := atomic.LoadInt64(&c.state)
		oldTimestamp, oldSequence := old>>sequenceBits, old&maxSequence

		timestamp := time.Now().UnixMilli() - c.epoch
		sequence := int64(0)
		if timestamp <= oldTimestamp {
			timestamp = oldTimestamp
			sequence = (oldSequence + 1) & maxSequence
			if sequence == 0 {
				for timestamp <= oldTimestamp {
					timestamp = time.Now().UnixMilli() - c.epoch
				}
			}
		}

		if atomic.CompareAndSwapInt64(&c.state, old, timestamp<<sequenceBits|sequence) {
			return timestamp, sequence
		}
	}
}
