package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port        int    `yaml:"port"`
	GinMode     string `yaml:"gin_mode"`
	Environment string `yaml:"environment"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type SessionConfig struct {
	MaxAge           string `yaml:"max_age"`
	ValidateInterval string `yaml:"validate_interval"`
	PendingTTL       string `yaml:"pending_ttl"`
	CookieName       string `yaml:"cookie_name"`
	CookieSecure     bool   `yaml:"cookie_secure"`
}

type OTPConfig struct {
	ResendWindow string `yaml:"resend_window"`
	SendTimeout  string `yaml:"send_timeout"`
	DefaultDial  string `yaml:"default_dial_code"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type FirebaseConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type RazorpayConfig struct {
	KeyID        string `yaml:"key_id"`
	ScriptURL    string `yaml:"script_url"`
	LoadTimeout  string `yaml:"load_timeout"`
	Currency     string `yaml:"currency"`
	MerchantName string `yaml:"merchant_name"`
	ThemeColor   string `yaml:"theme_color"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type PricingConfig struct {
	DefaultServicePrice float64            `yaml:"default_service_price"`
	Services            map[string]float64 `yaml:"services"`
}

type ConfigFile struct {
	App      AppConfig      `yaml:"app"`
	Log      LogConfig      `yaml:"log"`
	Backend  BackendConfig  `yaml:"backend"`
	Session  SessionConfig  `yaml:"session"`
	OTP      OTPConfig      `yaml:"otp"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Razorpay RazorpayConfig `yaml:"razorpay"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Casbin   CasbinConfig   `yaml:"casbin"`
	Pricing  PricingConfig  `yaml:"pricing"`
}

type Config struct {
	Port        string
	GinMode     string
	Environment string

	LogLevel  string
	LogFormat string

	BackendURL     string
	BackendTimeout time.Duration

	SessionMaxAge        time.Duration
	SessionValidateEvery time.Duration
	PendingTTL           time.Duration
	CookieName           string
	CookieSecure         bool

	OTPResendWindow time.Duration
	OTPSendTimeout  time.Duration
	DefaultDialCode string

	DBDriver string
	DSN      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FirebaseAPIKey  string
	FirebaseBaseURL string

	RazorpayKeyID       string
	RazorpayScriptURL   string
	RazorpayLoadTimeout time.Duration
	Currency            string
	MerchantName        string
	ThemeColor          string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string

	CasbinModelPath string

	DefaultServicePrice float64
	ServicePrices       map[string]float64
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env (when present), the YAML config file and environment overrides
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromFile(env("CONFIG_PATH", "config/config.yml"))
}

// LoadFromFile builds the configuration from the YAML file at path
func LoadFromFile(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return build(configFile)
}

func build(f *ConfigFile) (*Config, error) {
	backendTimeout, err := duration(f.Backend.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid backend timeout: %w", err)
	}
	maxAge, err := duration(f.Session.MaxAge, 15*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid session max age: %w", err)
	}
	validateEvery, err := duration(f.Session.ValidateInterval, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid session validate interval: %w", err)
	}
	pendingTTL, err := duration(f.Session.PendingTTL, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid pending verification TTL: %w", err)
	}
	resendWindow, err := duration(f.OTP.ResendWindow, 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP resend window: %w", err)
	}
	sendTimeout, err := duration(f.OTP.SendTimeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP send timeout: %w", err)
	}
	loadTimeout, err := duration(f.Razorpay.LoadTimeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid razorpay load timeout: %w", err)
	}

	port := f.App.Port
	if port == 0 {
		port = 8080
	}
	redisDB := f.Redis.DB
	if v := os.Getenv("REDIS_DB"); v != "" {
		if redisDB, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}
	defaultPrice := f.Pricing.DefaultServicePrice
	if defaultPrice == 0 {
		defaultPrice = 200
	}

	return &Config{
		Port:        env("PORT", strconv.Itoa(port)),
		GinMode:     env("GIN_MODE", or(f.App.GinMode, "release")),
		Environment: env("APP_ENV", or(f.App.Environment, "development")),

		LogLevel:  env("LOG_LEVEL", or(f.Log.Level, "info")),
		LogFormat: or(f.Log.Format, "json"),

		BackendURL:     env("BACKEND_BASE_URL", f.Backend.BaseURL),
		BackendTimeout: backendTimeout,

		SessionMaxAge:        maxAge,
		SessionValidateEvery: validateEvery,
		PendingTTL:           pendingTTL,
		CookieName:           or(f.Session.CookieName, "kyc_sid"),
		CookieSecure:         f.Session.CookieSecure,

		OTPResendWindow: resendWindow,
		OTPSendTimeout:  sendTimeout,
		DefaultDialCode: or(f.OTP.DefaultDial, "91"),

		DBDriver: or(f.Database.Driver, "postgres"),
		DSN:      env("DATABASE_DSN", f.Database.DSN),

		RedisAddr:     env("REDIS_ADDR", or(f.Redis.Addr, "localhost:6379")),
		RedisPassword: env("REDIS_PASSWORD", f.Redis.Password),
		RedisDB:       redisDB,

		FirebaseAPIKey:  env("FIREBASE_API_KEY", f.Firebase.APIKey),
		FirebaseBaseURL: or(f.Firebase.BaseURL, "https://identitytoolkit.googleapis.com/v1"),

		RazorpayKeyID:       env("RAZORPAY_KEY_ID", f.Razorpay.KeyID),
		RazorpayScriptURL:   or(f.Razorpay.ScriptURL, "https://checkout.razorpay.com/v1/checkout.js"),
		RazorpayLoadTimeout: loadTimeout,
		Currency:            or(f.Razorpay.Currency, "INR"),
		MerchantName:        or(f.Razorpay.MerchantName, "VerifyMyKyc"),
		ThemeColor:          or(f.Razorpay.ThemeColor, "#3B82F6"),

		TwilioSID:   env("TWILIO_ACCOUNT_SID", f.Twilio.AccountSID),
		TwilioToken: env("TWILIO_AUTH_TOKEN", f.Twilio.AuthToken),
		TwilioFrom:  env("TWILIO_FROM_NUMBER", f.Twilio.FromNumber),

		CasbinModelPath: f.Casbin.ModelPath,

		DefaultServicePrice: defaultPrice,
		ServicePrices:       f.Pricing.Services,
	}, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
