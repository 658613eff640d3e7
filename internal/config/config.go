package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Campaign  CampaignConfig  `mapstructure:"campaign"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Task      TaskConfig      `mapstructure:"task"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	DSN      string `mapstructure:"dsn"`    // 设置后优先于下面的字段
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 众筹合约所在链的配置
type ChainConfig struct {
	RpcUrl          string        `mapstructure:"rpc_url"`          // RPC节点URL
	ChainId         int64         `mapstructure:"chain_id"`         // 0 表示从节点查询
	ContractAddress string        `mapstructure:"contract_address"` // 众筹合约地址
	ABIPath         string        `mapstructure:"abi_path"`         // 为空时使用内置ABI
	PrivateKey      string        `mapstructure:"private_key"`      // 发送交易的私钥
	SenderAddress   string        `mapstructure:"sender_address"`   // 可选，必须与私钥一致
	GasLimit        uint64        `mapstructure:"gas_limit"`        // 0 表示由节点估算
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	Sandbox         bool          `mapstructure:"sandbox"` // 仅用于测试环境，不会真正上链
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type CampaignConfig struct {
	SearchFields []string `mapstructure:"search_fields"`
}

// LifecycleConfig 投票与里程碑结算的资格策略
type LifecycleConfig struct {
	ContributeBeforeEnd bool   `mapstructure:"contribute_before_end"`
	VoteWindow          string `mapstructure:"vote_window"` // any, before_end, after_end
	OneVotePerUser      bool   `mapstructure:"one_vote_per_user"`
	FinalizeOwnerOnly   bool   `mapstructure:"finalize_owner_only"`
	FinalizeAfterEnd    bool   `mapstructure:"finalize_after_end"`
}

type TaskConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Interval    int  `mapstructure:"interval"` // 秒
	BatchSize   int  `mapstructure:"batch_size"`
	Workers     int  `mapstructure:"workers"`
	MaxAttempts int  `mapstructure:"max_attempts"`
	StaleAfter  int  `mapstructure:"stale_after"` // 秒，pending 超过该时长视为卡住，需大于 chain.call_timeout
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// SetDefaults 设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "trustfunds")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:7545")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.gas_limit", 6000000)
	v.SetDefault("chain.call_timeout", "60s")
	v.SetDefault("chain.sandbox", false)
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("campaign.search_fields", []string{"title", "name"})
	v.SetDefault("lifecycle.contribute_before_end", true)
	v.SetDefault("lifecycle.vote_window", "any")
	v.SetDefault("lifecycle.one_vote_per_user", false)
	v.SetDefault("lifecycle.finalize_owner_only", true)
	v.SetDefault("lifecycle.finalize_after_end", false)
	v.SetDefault("task.enabled", true)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.batch_size", 20)
	v.SetDefault("task.workers", 4)
	v.SetDefault("task.max_attempts", 5)
	v.SetDefault("task.stale_after", 600)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 读取配置文件与环境变量，configFile 为空时按默认路径查找
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/trustfunds")
	}

	SetDefaults(v)

	// 自动读取环境变量，例如 CHAIN_RPC_URL、AUTH_JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnv 没有默认值的键不会被 AutomaticEnv 反序列化，需要显式绑定
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"database.dsn",
		"chain.contract_address",
		"chain.abi_path",
		"chain.private_key",
		"chain.sender_address",
		"auth.jwt_secret",
		"auth.cookie_domain",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate 校验启动所必需的配置
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Lifecycle.VoteWindow {
	case "any", "before_end", "after_end":
	default:
		return fmt.Errorf("invalid lifecycle.vote_window: %s", c.Lifecycle.VoteWindow)
	}
	for _, field := range c.Campaign.SearchFields {
		switch field {
		case "name", "title", "story":
		default:
			return fmt.Errorf("invalid campaign.search_fields entry: %s", field)
		}
	}
	if c.Task.Enabled && c.Task.StaleAfter <= 0 {
		return errors.New("task.stale_after must be positive")
	}
	if c.Chain.Sandbox {
		return nil
	}
	if c.Chain.RpcUrl == "" {
		return errors.New("chain.rpc_url is required")
	}
	if c.Chain.ContractAddress == "" {
		return errors.New("chain.contract_address is required")
	}
	if c.Chain.PrivateKey == "" {
		return errors.New("chain.private_key is required")
	}
	if c.Chain.CallTimeout <= 0 {
		return errors.New("chain.call_timeout must be positive")
	}
	// 提交仍在等待回执时不能被当作卡住
	if c.Task.Enabled && time.Duration(c.Task.StaleAfter)*time.Second <= c.Chain.CallTimeout {
		return errors.New("task.stale_after must exceed chain.call_timeout")
	}
	return nil
}
