package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 默认配置文件名
const DefaultConfigFile = "server.yaml"

// 重新加载方式
const (
	ReloadCommand = "command"
	ReloadSystemd = "systemd"
	ReloadNone    = "none"
)

// gin 运行模式
const (
	ModeDebug   = "debug"
	ModeRelease = "release"
	ModeTest    = "test"
)

// EnvPrefix 环境变量前缀，例如 KNOTSTATS_STATS_URL
const EnvPrefix = "KNOTSTATS"

// ServerConfig 服务端配置
type ServerConfig struct {
	App struct {
		Name           string        `yaml:"name"`
		Mode           string        `yaml:"mode"`
		Listen         string        `yaml:"listen"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		MaxHeaderBytes int           `yaml:"max_header_bytes"`
		// AllowOrigins 允许跨域访问的来源，为空时只接受同源请求
		AllowOrigins   []string      `yaml:"allow_origins,omitempty"`
	} `yaml:"app"`

	Resolver struct {
		StatsURL    string        `yaml:"stats_url"`
		Timeout     time.Duration `yaml:"timeout"`
		ServiceName string        `yaml:"service_name"`
	} `yaml:"resolver"`

	Hosts struct {
		Path          string        `yaml:"path"`
		ReloadMethod  string        `yaml:"reload_method"`
		ReloadCommand []string      `yaml:"reload_command"`
		ReloadTimeout time.Duration `yaml:"reload_timeout"`
	} `yaml:"hosts"`

	Database struct {
		Path             string        `yaml:"path"`
		JournalRetention time.Duration `yaml:"journal_retention"`
	} `yaml:"database"`

	Auth struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Scheduler struct {
		ProbeSpec string `yaml:"probe_spec"`
		PruneSpec string `yaml:"prune_spec"`
	} `yaml:"scheduler"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// DefaultServerConfig 返回带默认值的配置
func DefaultServerConfig() *ServerConfig {
	config := &ServerConfig{}

	config.App.Name = "Knot Resolver Stats"
	config.App.Mode = ModeRelease
	config.App.Listen = ":5001"
	config.App.ReadTimeout = 15 * time.Second
	config.App.WriteTimeout = 15 * time.Second
	config.App.IdleTimeout = 60 * time.Second
	config.App.MaxHeaderBytes = 1
	config.Resolver.StatsURL = "http://127.0.0.1:8453/metrics/json"
	config.Resolver.Timeout = 500 * time.Millisecond
	config.Resolver.ServiceName = "knot-resolver.service"
	config.Hosts.Path = "/etc/knot-resolver/hosts.local"
	config.Hosts.ReloadMethod = ReloadCommand
	config.Hosts.ReloadCommand = []string{"/usr/bin/sudo", "/usr/bin/systemctl", "reload", "knot-resolver"}
	config.Hosts.ReloadTimeout = 10 * time.Second
	config.Database.Path = "data/knotstats.db"
	config.Database.JournalRetention = 30 * 24 * time.Hour
	config.Log.Level = "info"
	config.Log.Format = "color"
	config.Scheduler.ProbeSpec = "*/10 * * * * *"
	config.Scheduler.PruneSpec = "0 30 3 * * *"
	config.Metrics.Enabled = true
	config.Metrics.Path = "/metrics"

	return config
}

// findConfigFile 智能查找配置文件
func findConfigFile(filename string) (string, error) {
	// 候选路径列表
	candidates := []string{
		filename,                                    // 当前目录
		filepath.Join("configs", filename),          // 当前目录的 configs 子目录
		filepath.Join("..", "configs", filename),    // 上级目录的 configs 子目录
		filepath.Join("/etc/knotstats", filename),   // 系统目录
		filepath.Join("../..", "configs", filename), // 上上级目录的 configs 子目录
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("配置文件 %s 未找到，已搜索路径: %v", filename, candidates)
}

// ResolveConfigPath 确定实际使用的配置文件
// 显式指定的文件必须存在；未指定时查找默认文件，找不到则返回空串使用默认值
func ResolveConfigPath(configPath string, explicit bool) (string, error) {
	if explicit {
		return findConfigFile(configPath)
	}
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	path, err := findConfigFile(configPath)
	if err != nil {
		return "", nil
	}
	return path, nil
}

// LoadServerConfig 加载服务器配置
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	config := DefaultServerConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	return config, nil
}

// NewViper 创建绑定环境变量的viper实例
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides 用命令行参数和环境变量覆盖配置文件中的值
func ApplyOverrides(config *ServerConfig, v *viper.Viper) {
	if v == nil {
		return
	}
	if s := v.GetString("listen"); s != "" {
		config.App.Listen = s
	}
	if s := v.GetString("stats-url"); s != "" {
		config.Resolver.StatsURL = s
	}
	if d := v.GetDuration("stats-timeout"); d > 0 {
		config.Resolver.Timeout = d
	}
	if s := v.GetString("hosts-file"); s != "" {
		config.Hosts.Path = s
	}
	if s := v.GetString("reload-method"); s != "" {
		config.Hosts.ReloadMethod = s
	}
	if s := v.GetString("database"); s != "" {
		config.Database.Path = s
	}
	if s := v.GetString("log-level"); s != "" {
		config.Log.Level = s
	}
	if s := v.GetString("log-format"); s != "" {
		config.Log.Format = s
	}
	if s := v.GetString("mode"); s != "" {
		config.App.Mode = s
	}
}

// Validate 校验配置，返回全部问题
func (c *ServerConfig) Validate() error {
	var result *multierror.Error

	if c.App.Listen == "" {
		result = multierror.Append(result, errors.New("app.listen 不能为空"))
	}
	switch c.App.Mode {
	case ModeDebug, ModeRelease, ModeTest:
	default:
		result = multierror.Append(result, fmt.Errorf("app.mode 不支持: %q", c.App.Mode))
	}
	for _, origin := range c.App.AllowOrigins {
		if origin == "*" {
			continue
		}
		o, err := url.Parse(origin)
		if err != nil || o.Scheme == "" || o.Host == "" || o.Path != "" {
			result = multierror.Append(result, fmt.Errorf("app.allow_origins 无效: %q", origin))
		}
	}

	u, err := url.Parse(c.Resolver.StatsURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("resolver.stats_url 无效: %q", c.Resolver.StatsURL))
	}
	if c.Resolver.Timeout <= 0 {
		result = multierror.Append(result, errors.New("resolver.timeout 必须大于0"))
	}

	if c.Hosts.Path == "" {
		result = multierror.Append(result, errors.New("hosts.path 不能为空"))
	}
	switch c.Hosts.ReloadMethod {
	case ReloadCommand:
		if len(c.Hosts.ReloadCommand) == 0 {
			result = multierror.Append(result, errors.New("hosts.reload_command 不能为空"))
		}
	case ReloadSystemd:
		if c.Resolver.ServiceName == "" {
			result = multierror.Append(result, errors.New("resolver.service_name 不能为空"))
		}
	case ReloadNone:
	default:
		result = multierror.Append(result, fmt.Errorf("hosts.reload_method 不支持: %q", c.Hosts.ReloadMethod))
	}

	if c.Auth.PasswordHash != "" && c.Auth.Username == "" {
		result = multierror.Append(result, errors.New("设置 auth.password_hash 时 auth.username 不能为空"))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		result = multierror.Append(result, fmt.Errorf("metrics.path 必须以 / 开头: %q", c.Metrics.Path))
	}

	return result.ErrorOrNil()
}

// SaveServerConfig 保存服务器配置
func SaveServerConfig(config *ServerConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	return nil
}
