package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Watchlist   []string          `yaml:"watchlist"`
	Timeframes  []string          `yaml:"timeframes"`
	Intervals   IntervalConfig    `yaml:"intervals"`
	Technical   TechnicalConfig   `yaml:"technical"`
	Sentiment   SentimentConfig   `yaml:"sentiment"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Binance     BinanceConfig     `yaml:"binance"`
	Reddit      RedditConfig      `yaml:"reddit"`
	CryptoPanic CryptoPanicConfig `yaml:"cryptopanic"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Web         WebConfig         `yaml:"web"`
	Logging     LoggingConfig     `yaml:"logging"`
	Database    DatabaseConfig    `yaml:"database"`
}

type IntervalConfig struct {
	CandleFetchSeconds   int `yaml:"candle_fetch"`
	SocialPollSeconds    int `yaml:"social_poll"`
	AnalysisCycleSeconds int `yaml:"analysis_cycle"`
}

type TechnicalConfig struct {
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	MACDFast      int     `yaml:"macd_fast"`
	MACDSlow      int     `yaml:"macd_slow"`
	MACDSignal    int     `yaml:"macd_signal"`
	BBPeriod      int     `yaml:"bb_period"`
	BBStd         float64 `yaml:"bb_std"`
	EMAPeriods    []int   `yaml:"ema_periods"`
}

type SentimentConfig struct {
	ZScoreSpikeThreshold   float64 `yaml:"zscore_spike_threshold"`
	ZScoreExtremeThreshold float64 `yaml:"zscore_extreme_threshold"`
	RollingWindow          int     `yaml:"rolling_window"`
	MomentumPeriods        int     `yaml:"momentum_periods"`
}

type StrategyConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

type RiskConfig struct {
	MaxPositionPct         float64 `yaml:"max_position_pct"`
	StopLossPct            float64 `yaml:"stop_loss_pct"`
	TakeProfitPct          float64 `yaml:"take_profit_pct"`
	MaxDailyLossPct        float64 `yaml:"max_daily_loss_pct"`
	CooldownMinutes        int     `yaml:"cooldown_minutes"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
}

type ExecutionConfig struct {
	Mode                 string  `yaml:"mode"` // "paper" or "live"
	PaperStartingBalance float64 `yaml:"paper_starting_balance"`
}

type BinanceConfig struct {
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

type RedditConfig struct {
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	UserAgent    string `yaml:"user_agent"`
}

type CryptoPanicConfig struct {
	APIKey string `yaml:"-"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"-"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML settings file, merges secrets from the environment
// (optionally a .env file in the working directory), applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	// A missing .env just means secrets come from the real environment.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.loadSecrets()
	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadSecrets() {
	c.Binance.APIKey = os.Getenv("BINANCE_API_KEY")
	c.Binance.APISecret = os.Getenv("BINANCE_API_SECRET")
	c.Reddit.ClientID = os.Getenv("REDDIT_CLIENT_ID")
	c.Reddit.ClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	c.CryptoPanic.APIKey = os.Getenv("CRYPTOPANIC_API_KEY")
	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if p := os.Getenv("DATABASE_PATH"); p != "" {
		c.Database.Path = p
	}
}

// SetDefaults fills zero values with the documented defaults. Exported so the
// backtester can build a usable config without a settings file.
func SetDefaults(cfg *Config) {
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = []string{"BTC-USD", "ETH-USD"}
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []string{"1h"}
	}
	if cfg.Intervals.CandleFetchSeconds == 0 {
		cfg.Intervals.CandleFetchSeconds = 300
	}
	if cfg.Intervals.SocialPollSeconds == 0 {
		cfg.Intervals.SocialPollSeconds = 600
	}
	if cfg.Intervals.AnalysisCycleSeconds == 0 {
		cfg.Intervals.AnalysisCycleSeconds = 300
	}
	if cfg.Technical.RSIPeriod == 0 {
		cfg.Technical.RSIPeriod = 14
	}
	if cfg.Technical.RSIOverbought == 0 {
		cfg.Technical.RSIOverbought = 70
	}
	if cfg.Technical.RSIOversold == 0 {
		cfg.Technical.RSIOversold = 30
	}
	if cfg.Technical.MACDFast == 0 {
		cfg.Technical.MACDFast = 12
	}
	if cfg.Technical.MACDSlow == 0 {
		cfg.Technical.MACDSlow = 26
	}
	if cfg.Technical.MACDSignal == 0 {
		cfg.Technical.MACDSignal = 9
	}
	if cfg.Technical.BBPeriod == 0 {
		cfg.Technical.BBPeriod = 20
	}
	if cfg.Technical.BBStd == 0 {
		cfg.Technical.BBStd = 2
	}
	if len(cfg.Technical.EMAPeriods) == 0 {
		cfg.Technical.EMAPeriods = []int{9, 21, 50}
	}
	if cfg.Sentiment.ZScoreSpikeThreshold == 0 {
		cfg.Sentiment.ZScoreSpikeThreshold = 2.0
	}
	if cfg.Sentiment.ZScoreExtremeThreshold == 0 {
		cfg.Sentiment.ZScoreExtremeThreshold = 3.0
	}
	if cfg.Sentiment.RollingWindow == 0 {
		cfg.Sentiment.RollingWindow = 24
	}
	if cfg.Sentiment.MomentumPeriods == 0 {
		cfg.Sentiment.MomentumPeriods = 6
	}
	if cfg.Strategy.MinConfidence == 0 {
		cfg.Strategy.MinConfidence = 0.6
	}
	if cfg.Risk.MaxPositionPct == 0 {
		cfg.Risk.MaxPositionPct = 5.0
	}
	if cfg.Risk.StopLossPct == 0 {
		cfg.Risk.StopLossPct = 5.0
	}
	if cfg.Risk.TakeProfitPct == 0 {
		cfg.Risk.TakeProfitPct = 15.0
	}
	if cfg.Risk.MaxDailyLossPct == 0 {
		cfg.Risk.MaxDailyLossPct = 3.0
	}
	if cfg.Risk.CooldownMinutes == 0 {
		cfg.Risk.CooldownMinutes = 60
	}
	if cfg.Risk.MaxConcurrentPositions == 0 {
		cfg.Risk.MaxConcurrentPositions = 3
	}
	if cfg.Execution.Mode == "" {
		cfg.Execution.Mode = "paper"
	}
	if cfg.Execution.PaperStartingBalance == 0 {
		cfg.Execution.PaperStartingBalance = 10000
	}
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = "crowd-trader/1.0"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8877
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/crowd-trader.db"
	}
}

func (c *Config) Validate() error {
	if c.Execution.Mode != "paper" && c.Execution.Mode != "live" {
		return fmt.Errorf("execution.mode must be \"paper\" or \"live\", got %q", c.Execution.Mode)
	}
	if c.Execution.Mode == "live" {
		if c.Binance.APIKey == "" || c.Binance.APISecret == "" {
			return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET are required for live trading")
		}
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
		return fmt.Errorf("strategy.min_confidence must be within [0, 1], got %v", c.Strategy.MinConfidence)
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("risk.max_position_pct must be within (0, 100], got %v", c.Risk.MaxPositionPct)
	}
	return nil
}

func (c *Config) IsLive() bool {
	return c.Execution.Mode == "live"
}

func (c *Config) CandleFetchInterval() time.Duration {
	return time.Duration(c.Intervals.CandleFetchSeconds) * time.Second
}

func (c *Config) SocialPollInterval() time.Duration {
	return time.Duration(c.Intervals.SocialPollSeconds) * time.Second
}

func (c *Config) AnalysisInterval() time.Duration {
	return time.Duration(c.Intervals.AnalysisCycleSeconds) * time.Second
}

// Cooldown returns the per-product re-entry cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Risk.CooldownMinutes) * time.Minute
}
