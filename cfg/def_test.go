package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type defServerOptions struct {
	Host       string        `def:"localhost"`
	Port       int           `def:"3306"`
	Ratio      float64       `def:"0.5"`
	Autocommit *bool         `def:"true"`
	Enabled    bool          `def:"true"`
	Timeout    time.Duration `def:"30s"`
	Tags       []string      `def:"a, b,c"`
	Sizes      []int         `def:"1,2"`
	MaxIdle    uint16        `def:"0x10"`
	NoDefault  string

	Pool defPoolOptions
}

type defPoolOptions struct {
	MaxSize int `def:"10"`
	MinSize int `def:"1"`
}

func TestSetDefaults_BasicTypes(t *testing.T) {
	options := &defServerOptions{}
	assert.NoError(t, SetDefaults(options))

	assert.Equal(t, "localhost", options.Host)
	assert.Equal(t, 3306, options.Port)
	assert.Equal(t, 0.5, options.Ratio)
	assert.True(t, options.Enabled)
	assert.Equal(t, 30*time.Second, options.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, options.Tags)
	assert.Equal(t, []int{1, 2}, options.Sizes)
	assert.Equal(t, uint16(16), options.MaxIdle)
	assert.Equal(t, "", options.NoDefault)
	if assert.NotNil(t, options.Autocommit) {
		assert.True(t, *options.Autocommit)
	}
}

func TestSetDefaults_NestedStruct(t *testing.T) {
	options := &defServerOptions{}
	assert.NoError(t, SetDefaults(options))
	assert.Equal(t, 10, options.Pool.MaxSize)
	assert.Equal(t, 1, options.Pool.MinSize)
}

func TestSetDefaults_NonZeroValues(t *testing.T) {
	autocommit := false
	options := &defServerOptions{
		Host:       "db.internal",
		Port:       3307,
		Autocommit: &autocommit,
		Pool:       defPoolOptions{MaxSize: 20},
	}
	assert.NoError(t, SetDefaults(options))

	assert.Equal(t, "db.internal", options.Host)
	assert.Equal(t, 3307, options.Port)
	assert.False(t, *options.Autocommit)
	assert.Equal(t, 20, options.Pool.MaxSize)
	assert.Equal(t, 1, options.Pool.MinSize)
}

func TestSetDefaults_InvalidInput(t *testing.T) {
	assert.Error(t, SetDefaults(nil))
	assert.Error(t, SetDefaults(defServerOptions{}))

	var options *defServerOptions
	assert.Error(t, SetDefaults(options))

	type badOptions struct {
		Port int `def:"not-a-number"`
	}
	assert.Error(t, SetDefaults(&badOptions{}))

	type mapOptions struct {
		Labels map[string]string `def:"a=b"`
	}
	assert.Error(t, SetDefaults(&mapOptions{}))
}
