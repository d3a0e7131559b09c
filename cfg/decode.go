package cfg

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	FormatYaml = "yaml"
	FormatJson = "json"
	FormatToml = "toml"
	FormatIni  = "ini"
)

// FormatFromPath 根据文件扩展名推断配置格式
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYaml
	case ".json":
		return FormatJson
	case ".toml":
		return FormatToml
	case ".ini", ".conf":
		return FormatIni
	}
	return ""
}

// Decode 将配置数据解码为通用的 map 结构
func Decode(format string, data []byte) (map[string]any, error) {
	result := map[string]any{}

	switch format {
	case FormatYaml:
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode YAML")
		}
	case FormatJson:
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON")
		}
	case FormatToml:
		if err := toml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "failed to decode TOML")
		}
	case FormatIni:
		return decodeIni(data)
	default:
		return nil, errors.Errorf("unsupported format: %q", format)
	}

	// yaml 空文档会把 result 置为 nil
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

// decodeIni 默认 section 的键放在顶层，其余 section 作为嵌套 map
func decodeIni(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode INI")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			target = map[string]any{}
			result[section.Name()] = target
		}
		for _, key := range section.Keys() {
			target[key.Name()] = parseScalar(key.String())
		}
	}
	return result, nil
}

// parseScalar 把文本值尽量解析为 bool/int/float
func parseScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
