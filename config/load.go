package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/agentrec/core"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "AGENTREC_"

// ConfigPathEnvVar 指定配置文件路径的环境变量
const ConfigPathEnvVar = "AGENTREC_CONFIG"

// DefaultConfigPaths 未显式指定时依次查找的配置文件
var DefaultConfigPaths = []string{
	"agentrec.yaml",
	"agentrec.yml",
	"/etc/agentrec/config.yaml",
}

// 环境变量里以逗号分隔的列表字段
var sliceConfigPaths = []string{
	"ranking.blocked_items",
	"critic.allow_keywords",
}

// Load 按 默认值 → 文件 → 环境变量 的顺序加载配置并校验。
// path 为空时依次尝试 AGENTREC_CONFIG 与 DefaultConfigPaths，都不存在则只用默认值和环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, wrap("load defaults", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrap(fmt.Sprintf("load config file %s", path), err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, wrap("load environment", err)
	}
	if err := splitSliceFields(k); err != nil {
		return nil, wrap("parse list fields", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, wrap("unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey AGENTREC_RANKING__FINAL_K -> ranking.final_k
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if s == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return err
		}
	}
	return nil
}

func wrap(msg string, err error) error {
	return core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, msg, err)
}
