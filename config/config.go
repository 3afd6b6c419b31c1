package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Clone    CloneConfig    `mapstructure:"clone"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type QueueConfig struct {
	RepoProcessingQueue string `mapstructure:"repo_processing_queue"`
	AIAnalysisQueue     string `mapstructure:"ai_analysis_queue"`
	ResultQueue         string `mapstructure:"result_queue"`
	MaxWorkers          int    `mapstructure:"max_workers"`
	VisibilitySeconds   int    `mapstructure:"visibility_seconds"`
}

type CloneConfig struct {
	TempDir        string `mapstructure:"temp_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	MaxRepoBytes   int64  `mapstructure:"max_repo_bytes"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type CleanupConfig struct {
	IntervalSeconds  int `mapstructure:"interval_seconds"`
	MaxJobAgeHours   int `mapstructure:"max_job_age_hours"`
	RequeueBatchSize int `mapstructure:"requeue_batch_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// 队列名默认值，所有服务必须一致
const (
	DefaultRepoProcessingQueue = "gitinsight_repo_processing"
	DefaultAIAnalysisQueue     = "gitinsight_ai_analysis"
	DefaultResultQueue         = "gitinsight_results"
)

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Queue.RepoProcessingQueue == "" {
		cfg.Queue.RepoProcessingQueue = DefaultRepoProcessingQueue
	}
	if cfg.Queue.AIAnalysisQueue == "" {
		cfg.Queue.AIAnalysisQueue = DefaultAIAnalysisQueue
	}
	if cfg.Queue.ResultQueue == "" {
		cfg.Queue.ResultQueue = DefaultResultQueue
	}
	if cfg.Queue.MaxWorkers <= 0 {
		cfg.Queue.MaxWorkers = 4
	}
	if cfg.Queue.VisibilitySeconds <= 0 {
		cfg.Queue.VisibilitySeconds = 600
	}
	if cfg.Clone.TimeoutSeconds <= 0 {
		cfg.Clone.TimeoutSeconds = 120
	}
	if cfg.Clone.MaxRepoBytes <= 0 {
		cfg.Clone.MaxRepoBytes = 200 << 20 // 200 MiB
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.Gemini.TimeoutSeconds <= 0 {
		cfg.Gemini.TimeoutSeconds = 180
	}
	if cfg.Cleanup.IntervalSeconds <= 0 {
		cfg.Cleanup.IntervalSeconds = 60
	}
	if cfg.Cleanup.MaxJobAgeHours <= 0 {
		cfg.Cleanup.MaxJobAgeHours = 6
	}
	if cfg.Cleanup.RequeueBatchSize <= 0 {
		cfg.Cleanup.RequeueBatchSize = 100
	}
}
