package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"checkout-bridge/internal/domain/model"
)

type RuntimeConfig struct {
	Dev     bool
	Version string
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// RedisConfig is optional; an empty URL keeps sessions in process memory.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ExpiredGrace  time.Duration `yaml:"expired_grace"` // how long an expired entry can still be reported as expired
}

type CheckoutConfig struct {
	RequireAmount   *bool  `yaml:"require_amount"`
	DefaultCurrency string `yaml:"default_currency"`
	SuccessURL      string `yaml:"success_url"`
	CancelURL       string `yaml:"cancel_url"`
	Source          string `yaml:"source"`
}

type PlanBandConfig struct {
	Min    float64 `yaml:"min"` // major units
	Max    float64 `yaml:"max"` // major units; ignored for the top band
	PlanID string  `yaml:"plan_id"`
	Name   string  `yaml:"name"`
}

type PlansConfig struct {
	DefaultPlanID   string           `yaml:"default_plan_id"`
	DefaultPlanName string           `yaml:"default_plan_name"`
	BandConfigs     []PlanBandConfig `yaml:"bands"`
}

type WhopConfig struct {
	APIKey    string        `yaml:"api_key"`
	CompanyID string        `yaml:"company_id"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	Whop WhopConfig `yaml:"whop"`
}

type GetCourseConfig struct {
	Account string        `yaml:"account"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"` // overrides https://{account}.getcourse.ru
	Timeout time.Duration `yaml:"timeout"`
}

type OrderConfig struct {
	GetCourse GetCourseConfig `yaml:"getcourse"`
}

type WebhookConfig struct {
	Secret          string        `yaml:"secret"`
	AllowUnverified bool          `yaml:"allow_unverified"`
	Tolerance       time.Duration `yaml:"tolerance"`
	DedupTTL        time.Duration `yaml:"dedup_ttl"`
}

type WorkerConfig struct {
	Workers    int  `yaml:"workers"`
	AsyncRelay bool `yaml:"async_relay"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Plans    PlansConfig    `yaml:"plans"`
	Payment  PaymentConfig  `yaml:"payment"`
	Order    OrderConfig    `yaml:"order"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads an optional YAML file (with ${VAR} expansion), then lets
// well-known environment variables override secrets and deploy settings.
// A .env file in the working directory is loaded first if present.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if dev && cfg.Plans.DefaultPlanID == "" {
		cfg.Plans.DefaultPlanID = "plan_dev"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Payment.Whop.APIKey, "WHOP_API_KEY")
	setString(&cfg.Payment.Whop.CompanyID, "WHOP_COMPANY_ID")
	setString(&cfg.Webhook.Secret, "WHOP_WEBHOOK_SECRET")
	setString(&cfg.Plans.DefaultPlanID, "WHOP_PLAN_ID")
	setString(&cfg.Order.GetCourse.APIKey, "GETCOURSE_API_KEY")
	setString(&cfg.Order.GetCourse.Account, "GETCOURSE_ACCOUNT_NAME")
	setString(&cfg.Checkout.SuccessURL, "SUCCESS_REDIRECT_URL")
	setString(&cfg.Checkout.CancelURL, "CANCEL_REDIRECT_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Runtime.Version, "APP_VERSION")
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	cfg.Server.ReadTimeout = orDuration(cfg.Server.ReadTimeout, 15*time.Second)
	cfg.Server.WriteTimeout = orDuration(cfg.Server.WriteTimeout, 30*time.Second)
	cfg.Server.RequestTimeout = orDuration(cfg.Server.RequestTimeout, 25*time.Second)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.Session.TTL = orDuration(cfg.Session.TTL, 20*time.Minute)
	cfg.Session.SweepInterval = orDuration(cfg.Session.SweepInterval, 10*time.Minute)
	cfg.Session.ExpiredGrace = orDuration(cfg.Session.ExpiredGrace, 10*time.Minute)

	if cfg.Checkout.RequireAmount == nil {
		t := true
		cfg.Checkout.RequireAmount = &t
	}
	if cfg.Checkout.DefaultCurrency == "" {
		cfg.Checkout.DefaultCurrency = "USD"
	}
	if cfg.Checkout.Source == "" {
		cfg.Checkout.Source = "getcourse"
	}

	if cfg.Plans.DefaultPlanName == "" {
		cfg.Plans.DefaultPlanName = "default"
	}

	if cfg.Payment.Whop.BaseURL == "" {
		cfg.Payment.Whop.BaseURL = "https://api.whop.com/v2"
	}
	cfg.Payment.Whop.Timeout = orDuration(cfg.Payment.Whop.Timeout, 15*time.Second)
	cfg.Order.GetCourse.Timeout = orDuration(cfg.Order.GetCourse.Timeout, 15*time.Second)

	cfg.Webhook.DedupTTL = orDuration(cfg.Webhook.DedupTTL, 72*time.Hour)

	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Runtime.Version == "" {
		cfg.Runtime.Version = "dev"
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Minimal validation; the payment key and default plan are only optional in dev mode.
func (c *Config) validate() error {
	if !c.Runtime.Dev {
		if c.Payment.Whop.APIKey == "" {
			return errors.New("payment.whop.api_key (WHOP_API_KEY) is required")
		}
		if c.Plans.DefaultPlanID == "" {
			return errors.New("plans.default_plan_id (WHOP_PLAN_ID) is required")
		}
	}
	if _, err := model.NewPlanBands(c.Plans.Bands()); err != nil {
		return fmt.Errorf("plans.bands: %w", err)
	}
	return nil
}

// OrderPlatformEnabled reports whether settlement relays can be delivered.
func (c *Config) OrderPlatformEnabled() bool {
	g := c.Order.GetCourse
	return g.APIKey != "" && (g.Account != "" || g.BaseURL != "")
}

// RequiresAmount reports whether create-checkout rejects requests without an amount.
func (c *Config) RequiresAmount() bool {
	return c.Checkout.RequireAmount == nil || *c.Checkout.RequireAmount
}

// Bands converts the configured price bands (major units) to the domain table.
func (p PlansConfig) Bands() []model.PlanBand {
	out := make([]model.PlanBand, 0, len(p.BandConfigs))
	for _, b := range p.BandConfigs {
		out = append(out, model.PlanBand{
			MinPrice: int64(math.Round(b.Min * 100)),
			MaxPrice: int64(math.Round(b.Max * 100)),
			PlanID:   strings.TrimSpace(b.PlanID),
			PlanName: b.Name,
		})
	}
	return out
}

func (p PlansConfig) DefaultPlan() model.Plan {
	return model.Plan{ID: p.DefaultPlanID, Name: p.DefaultPlanName}
}
