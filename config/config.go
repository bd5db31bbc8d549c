// Copyright 2021 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ecodeclub/eroute/internal/errs"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL   = "mysql"
	DriverPgx     = "pgx"
	DriverSQLite3 = "sqlite3"
)

type Config struct {
	// Default 没有任何选择时使用的数据源
	Default string `yaml:"default"`
	// PingOnStart 为 true 时启动阶段检查所有数据源，超时时间为 StartupTimeout
	PingOnStart    bool          `yaml:"ping_on_start"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	Logging        LoggingConfig `yaml:"logging"`
	DataSources    []DataSource  `yaml:"datasources"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DataSource struct {
	Name        string     `yaml:"name"`
	DisplayName string     `yaml:"display_name"`
	ReadOnly    bool       `yaml:"read_only"`
	Driver      string     `yaml:"driver"`
	DSN         string     `yaml:"dsn"`
	Slaves      []string   `yaml:"slaves"`
	Pool        PoolConfig `yaml:"pool"`
}

// PoolConfig 连接池参数，0 表示使用 database/sql 的默认值
type PoolConfig struct {
	MaxOpen         int           `yaml:"max_open"`
	MaxIdle         int           `yaml:"max_idle"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

func defaultConfig() *Config {
	return &Config{
		Default:        "master",
		StartupTimeout: 5 * time.Second,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load 依次应用默认值、配置文件和环境变量，最后校验。
// path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	if path == "" {
		return build(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eroute: 读取配置文件失败: %w", err)
	}
	return build(data)
}

// Parse 从 YAML 内容中解析配置
func Parse(data []byte) (*Config, error) {
	return build(data)
}

func build(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("eroute: 解析配置文件失败: %w", err)
		}
	}
	loadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv 支持 EROUTE_DEFAULT、EROUTE_LOG_LEVEL 和 EROUTE_<NAME>_DSN
func loadFromEnv(cfg *Config) {
	if def := os.Getenv("EROUTE_DEFAULT"); def != "" {
		cfg.Default = def
	}
	if level := os.Getenv("EROUTE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	for i := range cfg.DataSources {
		ds := &cfg.DataSources[i]
		if dsn := os.Getenv(envKey(ds.Name, "DSN")); dsn != "" {
			ds.DSN = dsn
		}
	}
}

func envKey(name, suffix string) string {
	return "EROUTE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_" + suffix
}

func (c *Config) Validate() error {
	if len(c.DataSources) == 0 {
		return errs.NewErrInvalidDescriptor("至少需要配置一个数据源")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("eroute: 日志级别不正确: %w", err)
	}
	seen := make(map[string]struct{}, len(c.DataSources))
	for _, ds := range c.DataSources {
		if err := ds.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(ds.Name)
		if _, ok := seen[key]; ok {
			return errs.NewErrDuplicateDataSource(ds.Name)
		}
		seen[key] = struct{}{}
	}
	if _, ok := seen[strings.ToLower(c.Default)]; !ok {
		return errs.NewErrUnknownDataSource(c.Default)
	}
	return nil
}

func (d DataSource) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errs.NewErrInvalidDescriptor("数据源名字不能为空")
	}
	if err := checkDSN(d.Driver, d.DSN); err != nil {
		return wrapDSNErr(d.Name, err)
	}
	for _, slave := range d.Slaves {
		if err := checkDSN(d.Driver, slave); err != nil {
			return wrapDSNErr(d.Name, err)
		}
	}
	return nil
}

func wrapDSNErr(name string, err error) error {
	if errors.Is(err, errs.ErrUnsupportedDriver) {
		return err
	}
	return errs.NewErrInvalidDSN(name, err)
}

// checkDSN 使用各个 driver 自己的解析器校验 DSN
func checkDSN(driver, dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("DSN 为空")
	}
	switch driver {
	case DriverMySQL:
		_, err := mysql.ParseDSN(dsn)
		return err
	case DriverPgx:
		_, err := pgx.ParseConfig(dsn)
		return err
	case DriverSQLite3:
		return nil
	default:
		return errs.NewErrUnsupportedDriver(driver)
	}
}

// Redacted 返回隐藏了密码的 DSN，用于打印日志
func (d DataSource) Redacted() string {
	switch d.Driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(d.DSN)
		if err != nil {
			return "******"
		}
		if cfg.Passwd != "" {
			cfg.Passwd = "xxxxx"
		}
		return cfg.FormatDSN()
	case DriverPgx:
		u, err := url.Parse(d.DSN)
		if err != nil || u.Scheme == "" {
			return "******"
		}
		return u.Redacted()
	default:
		return d.DSN
	}
}
