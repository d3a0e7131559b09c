package strgen

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type UUIDGeneratorOptions struct {
	Version string `cfg:"version" def:"v4" validate:"omitempty,oneof=v1 v4 v6 v7"`
	// 是否保留连字符，默认输出32位十六进制
	WithHyphens bool `cfg:"withHyphens"`
}

type UUIDGenerator struct {
	newUUID     func() (uuid.UUID, error)
	withHyphens bool
}

func NewUUIDGeneratorWithOptions(options *UUIDGeneratorOptions) (*UUIDGenerator, error) {
	if options == nil {
		options = &UUIDGeneratorOptions{}
	}

	g := &UUIDGenerator{withHyphens: options.WithHyphens}
	switch options.Version {
	case "v1":
		g.newUUID = uuid.NewUUID
	case "", "v4":
		g.newUUID = uuid.NewRandom
	case "v6":
		g.newUUID = uuid.NewV6
	case "v7":
		g.newUUID = uuid.NewV7
	default:
		return nil, errors.Errorf("unsupported uuid version %s", options.Version)
	}
	return g, nil
}

func (g *UUIDGenerator) Generate() string {
	u := uuid.Must(g.newUUID())
	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
