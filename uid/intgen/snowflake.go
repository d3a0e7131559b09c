package intgen

import (
	"net"
	"time"
)

const (
	machineIDBits  = 10
	maxMachineID   = (1 << machineIDBits) - 1
	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

// 2020-01-01 00:00:00 UTC
var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type SnowflakeGeneratorOptions struct {
	// 为空时取本机第一个非回环 IPv4 地址的低两个字节
	MachineID *int64 `cfg:"machineID"`
	// 起始时间，为空时使用 2020-01-01
	Epoch time.Time `cfg:"epoch"`
}

// SnowflakeGenerator 1位符号 + 41位时间戳 + 10位机器号 + 12位序列号
type SnowflakeGenerator struct {
	clock     *clock
	machineID int64
}

func NewSnowflakeGeneratorWithOptions(options *SnowflakeGeneratorOptions) *SnowflakeGenerator {
	if options == nil {
		options = &SnowflakeGeneratorOptions{}
	}

	machineID := machineIDFromIP()
	if options.MachineID != nil {
		machineID = *options.MachineID
	}
	epoch := defaultEpoch
	if !options.Epoch.IsZero() {
		epoch = options.Epoch
	}

	return &SnowflakeGenerator{
		clock:     newClock(epoch.UnixMilli()),
		machineID: machineID & maxMachineID,
	}
}

func (g *SnowflakeGenerator) Generate() int64 {
	timestamp, sequence := g.clock.next()
	return timestamp<<timestampShift | g.machineID<<machineIDShift | sequence
}

func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ipv4 := ipnet.IP.To4(); ipv4 != nil {
			return int64(ipv4[2])<<8 | int64(ipv4[3])
		}
	}
	return 0
}
