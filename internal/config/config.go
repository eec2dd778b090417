/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config provides configuration management for the launcher agent.
// config 包提供启动器 Agent 的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables / 环境变量
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath    = "/etc/seatunnel-launcher/config.yaml"
	DefaultLauncherName  = "posix"
	DefaultRuntimeDir    = "/var/run/seatunnel-launcher"
	DefaultSystemdSlice  = "launcher_executors.slice"
	DefaultReapInterval  = 100 * time.Millisecond
	DefaultLogLevel      = "info"
	DefaultLogFile       = "/var/log/seatunnel-launcher/launcher.log"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 3
	DefaultLogMaxAge     = 7 // days
	DefaultAPIAddress    = "127.0.0.1:5051"
	DefaultGRPCAddress   = "127.0.0.1:5052"
	DefaultDatabaseType  = "sqlite"
	DefaultSQLitePath    = "/var/lib/seatunnel-launcher/launcher.db"
	DefaultDBLogLevel    = "warn"
	DefaultServiceName   = "seatunnel-launcher"
	DefaultOTLPEndpoint  = "127.0.0.1:4317"

	// MinReapInterval bounds how aggressively exits are polled
	// MinReapInterval 限制轮询退出状态的频率
	MinReapInterval = 10 * time.Millisecond
)

// EnvPrefix is the prefix of environment overrides, e.g. LAUNCHER_LOG_LEVEL
// EnvPrefix 是环境变量覆盖的前缀，例如 LAUNCHER_LOG_LEVEL
const EnvPrefix = "LAUNCHER"

// Launcher names
// 启动器名称
const (
	LauncherPosix   = "posix"
	LauncherWindows = "windows"
)

// Config represents the launcher agent configuration
// Config 表示启动器 Agent 配置
type Config struct {
	// Launcher configuration / 启动器配置
	Launcher LauncherConfig `mapstructure:"launcher"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log"`

	// Admin API configuration / 管理 API 配置
	API APIConfig `mapstructure:"api"`

	// gRPC service configuration / gRPC 服务配置
	GRPC GRPCConfig `mapstructure:"grpc"`

	// Telemetry configuration / 遥测配置
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Database configuration for container history / 容器历史的数据库配置
	Database DatabaseConfig `mapstructure:"database"`
}

// LauncherConfig contains launcher settings
// LauncherConfig 包含启动器设置
type LauncherConfig struct {
	// Name selects the launcher variant: posix or windows
	// Name 选择启动器变体：posix 或 windows
	Name string `mapstructure:"name"`

	// RuntimeDir is the root of checkpoint files
	// RuntimeDir 是检查点文件的根目录
	RuntimeDir string `mapstructure:"runtime_dir"`

	// SystemdSlice is the slice forked containers are moved into
	// SystemdSlice 是派生容器被移入的 slice
	SystemdSlice string `mapstructure:"systemd_slice"`

	// ReapInterval is the polling interval for exit-waits
	// ReapInterval 是退出等待的轮询间隔
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level"`

	// File is the log file path, empty disables file output
	// File 是日志文件路径，为空时禁用文件输出
	File string `mapstructure:"file"`

	// Console mirrors logs to stderr
	// Console 将日志同时输出到标准错误
	Console bool `mapstructure:"console"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age"`
}

// APIConfig contains admin API settings
// APIConfig 包含管理 API 设置
type APIConfig struct {
	// Enabled indicates whether the HTTP admin API is served
	// Enabled 表示是否提供 HTTP 管理 API
	Enabled bool `mapstructure:"enabled"`

	// Address is the listen address
	// Address 是监听地址
	Address string `mapstructure:"address"`
}

// GRPCConfig contains gRPC launcher service settings
// GRPCConfig 包含 gRPC 启动器服务设置
type GRPCConfig struct {
	// Enabled indicates whether the gRPC launcher service is served
	// Enabled 表示是否提供 gRPC 启动器服务
	Enabled bool `mapstructure:"enabled"`

	// Address is the listen address
	// Address 是监听地址
	Address string `mapstructure:"address"`

	// CertFile and KeyFile enable TLS when both are set
	// CertFile 和 KeyFile 同时设置时启用 TLS
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// CAFile turns on client certificate verification
	// CAFile 开启客户端证书验证
	CAFile string `mapstructure:"ca_file"`
}

// TelemetryConfig contains OpenTelemetry tracing settings
// TelemetryConfig 包含 OpenTelemetry 追踪设置
type TelemetryConfig struct {
	// Enabled turns on span export over OTLP/gRPC
	// Enabled 开启通过 OTLP/gRPC 导出 span
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP collector address (host:port)
	// Endpoint 是 OTLP 收集器地址（host:port）
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables TLS towards the collector
	// Insecure 禁用到收集器的 TLS
	Insecure bool `mapstructure:"insecure"`

	// ServiceName is reported as the service.name resource attribute
	ServiceName string `mapstructure:"service_name"`
}

// DatabaseConfig contains the container history database settings
// DatabaseConfig 包含容器历史数据库设置
type DatabaseConfig struct {
	// Enabled turns on container history recording
	// Enabled 开启容器历史记录
	Enabled bool `mapstructure:"enabled"`

	// Type is sqlite, mysql or postgres
	// Type 是 sqlite、mysql 或 postgres
	Type string `mapstructure:"type"`

	// SQLitePath is the database file used by the sqlite type
	// SQLitePath 是 sqlite 类型使用的数据库文件
	SQLitePath string `mapstructure:"sqlite_path"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// Connection pool, ignored by sqlite / 连接池，sqlite 忽略
	MaxIdleConn     int `mapstructure:"max_idle_conn"`
	MaxOpenConn     int `mapstructure:"max_open_conn"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"` // seconds

	// LogLevel is the gorm log level: silent, error, warn or info
	// LogLevel 是 gorm 日志级别
	LogLevel string `mapstructure:"log_level"`
}

// newViper creates a viper instance with defaults and env overrides
func newViper() *viper.Viper {
	v := viper.New()

	// Set default values / 设置默认值
	setDefaults(v)

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile points v at the config file and reads it. A missing file is
// not an error, the defaults apply.
// readConfigFile 读取配置文件。文件不存在不是错误，使用默认值。
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		// Check environment variable / 检查环境变量
		configPath = os.Getenv(EnvPrefix + "_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// Check if file exists / 检查文件是否存在
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, use defaults / 文件不存在，使用默认值
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := newViper()

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	// Unmarshal config / 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults first / 首先设置默认值
	setDefaults(v)

	// Read from bytes / 从字节读取
	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration holding only default values
// Default 返回仅包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode / 默认值总能解码
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Launcher defaults / 启动器默认值
	v.SetDefault("launcher.name", DefaultLauncherName)
	v.SetDefault("launcher.runtime_dir", DefaultRuntimeDir)
	v.SetDefault("launcher.systemd_slice", DefaultSystemdSlice)
	v.SetDefault("launcher.reap_interval", DefaultReapInterval)

	// Log defaults / 日志默认值
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.console", false)
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)

	// API defaults / API 默认值
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.address", DefaultAPIAddress)

	// gRPC defaults / gRPC 默认值
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.address", DefaultGRPCAddress)
	v.SetDefault("grpc.cert_file", "")
	v.SetDefault("grpc.key_file", "")
	v.SetDefault("grpc.ca_file", "")

	// Telemetry defaults / 遥测默认值
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", DefaultOTLPEndpoint)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)

	// Database defaults / 数据库默认值
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", DefaultDatabaseType)
	v.SetDefault("database.sqlite_path", DefaultSQLitePath)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.max_idle_conn", 10)
	v.SetDefault("database.max_open_conn", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", DefaultDBLogLevel)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	// Validate launcher / 验证启动器
	switch c.Launcher.Name {
	case LauncherPosix, LauncherWindows:
	default:
		return fmt.Errorf("invalid launcher.name: %q (must be posix or windows)", c.Launcher.Name)
	}
	if !filepath.IsAbs(c.Launcher.RuntimeDir) {
		return fmt.Errorf("launcher.runtime_dir must be an absolute path, got %q", c.Launcher.RuntimeDir)
	}
	if c.Launcher.ReapInterval < MinReapInterval {
		return fmt.Errorf("launcher.reap_interval must be at least %v", MinReapInterval)
	}

	// Validate log level / 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	// Validate API / 验证 API
	if c.API.Enabled && c.API.Address == "" {
		return errors.New("api.address is required when the API is enabled")
	}

	// Validate gRPC / 验证 gRPC
	if c.GRPC.Enabled && c.GRPC.Address == "" {
		return errors.New("grpc.address is required when gRPC is enabled")
	}
	if (c.GRPC.CertFile == "") != (c.GRPC.KeyFile == "") {
		return errors.New("grpc.cert_file and grpc.key_file must be set together")
	}
	if c.GRPC.CAFile != "" && c.GRPC.CertFile == "" {
		return errors.New("grpc.ca_file requires grpc.cert_file and grpc.key_file")
	}

	// Validate telemetry / 验证遥测
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	// Validate database / 验证数据库
	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite":
			if c.Database.SQLitePath == "" {
				return errors.New("database.sqlite_path is required for sqlite")
			}
		case "mysql", "postgres":
			if c.Database.Host == "" || c.Database.Database == "" {
				return fmt.Errorf("database.host and database.database are required for %s", c.Database.Type)
			}
		default:
			return fmt.Errorf("invalid database.type: %q (must be sqlite, mysql or postgres)", c.Database.Type)
		}
	}

	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Launcher.Name: %s, Launcher.RuntimeDir: %s, Log.Level: %s, API.Address: %s}",
		c.Launcher.Name,
		c.Launcher.RuntimeDir,
		c.Log.Level,
		c.API.Address,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	yamlContent := fmt.Sprintf(`launcher:
  name: "%s"
  runtime_dir: "%s"
  systemd_slice: "%s"
  reap_interval: %s

log:
  level: "%s"
  file: "%s"
  console: %t
  max_size: %d
  max_backups: %d
  max_age: %d

api:
  enabled: %t
  address: "%s"

grpc:
  enabled: %t
  address: "%s"
  cert_file: "%s"
  key_file: "%s"
  ca_file: "%s"

telemetry:
  enabled: %t
  endpoint: "%s"
  insecure: %t
  service_name: "%s"

database:
  enabled: %t
  type: "%s"
  sqlite_path: "%s"
  host: "%s"
  port: %d
  username: "%s"
  password: "%s"
  database: "%s"
  max_idle_conn: %d
  max_open_conn: %d
  conn_max_lifetime: %d
  log_level: "%s"
`,
		c.Launcher.Name,
		c.Launcher.RuntimeDir,
		c.Launcher.SystemdSlice,
		c.Launcher.ReapInterval.String(),
		c.Log.Level,
		c.Log.File,
		c.Log.Console,
		c.Log.MaxSize,
		c.Log.MaxBackups,
		c.Log.MaxAge,
		c.API.Enabled,
		c.API.Address,
		c.GRPC.Enabled,
		c.GRPC.Address,
		c.GRPC.CertFile,
		c.GRPC.KeyFile,
		c.GRPC.CAFile,
		c.Telemetry.Enabled,
		c.Telemetry.Endpoint,
		c.Telemetry.Insecure,
		c.Telemetry.ServiceName,
		c.Database.Enabled,
		c.Database.Type,
		c.Database.SQLitePath,
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.MaxIdleConn,
		c.Database.MaxOpenConn,
		c.Database.ConnMaxLifetime,
		c.Database.LogLevel,
	)
	return []byte(yamlContent), nil
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Launcher == other.Launcher &&
		c.Log == other.Log &&
		c.API == other.API &&
		c.GRPC == other.GRPC &&
		c.Telemetry == other.Telemetry &&
		c.Database == other.Database
}
