package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 支持 "30s" / "5m" 字面量的 yaml 时长
type Duration time.Duration

// UnmarshalYAML 解析时长字面量
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转换为标准库时长
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 内核总配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	Monitor MonitorConfig `yaml:"monitor"`
	Relay   RelayConfig   `yaml:"relay"`
}

// ServerConfig API 服务配置
type ServerConfig struct {
	// HTTP 服务
	HTTPAddr string `yaml:"http_addr" default:":8000"`

	// 允许的 Origin (HTTP CORS 与 WebSocket 握手共用)
	AllowOrigins []string `yaml:"allow_origins"`

	// 请求超时
	Timeout Duration `yaml:"timeout" default:"30s"`
}

// AgentConfig 外部 Agent 服务配置
type AgentConfig struct {
	// Agent 服务地址
	Endpoint string `yaml:"endpoint" default:"http://localhost:8100/process"`

	// API Key, 为空时回退到 FORGE_AGENT_API_KEY 环境变量
	APIKey string `yaml:"api_key"`

	// 单次调用超时
	Timeout Duration `yaml:"timeout" default:"120s"`
}

// MonitorConfig Prometheus 指标配置
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":9091"`
	Path    string `yaml:"path" default:"/metrics"`
}

// RelayConfig Redis 广播中继配置 (多实例事件镜像)
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel" default:"forge:events"`
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// 返回默认配置
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Agent.APIKey == "" {
		cfg.Agent.APIKey = os.Getenv("FORGE_AGENT_API_KEY")
	}

	return cfg, nil
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8000",
			AllowOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://localhost:3002",
			},
			Timeout: Duration(30 * time.Second),
		},
		Agent: AgentConfig{
			Endpoint: "http://localhost:8100/process",
			APIKey:   os.Getenv("FORGE_AGENT_API_KEY"),
			Timeout:  Duration(120 * time.Second),
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Addr:    ":9091",
			Path:    "/metrics",
		},
		Relay: RelayConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Channel: "forge:events",
		},
	}
}
