package intgen

// TimestampSeqGenerator 高52位毫秒时间戳 + 低12位序列号，单进程内严格递增
type TimestampSeqGenerator struct {
	clock *clock
}

func NewTimestampSeqGenerator() *TimestampSeqGenerator {
	return &TimestampSeqGenerator{clock: newClock(0)}
}

func (g *TimestampSeqGenerator) Generate() int64 {
	timestamp, sequence := g.clock.next()
	return timestamp<<sequenceBits | sequence
}
