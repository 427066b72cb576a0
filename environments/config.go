package environments

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Dispatch  DispatchConfig
	Carriers  CarriersConfig
	Scheduler SchedulerConfig
	Alert     AlertConfig
	Auth      AuthConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type DispatchConfig struct {
	DefaultDriver    string
	FallbackPriority []string
	BatchSize        int
	MaxBodyLength    int

	// Rate limiting per actor. Zero disables the limiter.
	RateLimitPerWindow int
	RateLimitWindow    time.Duration

	// Carrier HTTP timeouts.
	RequestTimeout time.Duration
	ConnectTimeout time.Duration

	BreakerEnabled     bool
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type SchedulerConfig struct {
	Interval  time.Duration
	RunLimit  int
	AutoStart bool
}

type AlertConfig struct {
	WebhookURL     string
	IterationCount int
}

type AuthConfig struct {
	MessagesAPIKey  string
	SchedulerAPIKey string
}

type LogConfig struct {
	Format string
	Level  string
}

// CarriersConfig holds the credentials of every supported carrier. A carrier
// with missing credentials stays registered but is never selected implicitly.
type CarriersConfig struct {
	Twilio      TwilioConfig      `yaml:"twilio"`
	Vonage      VonageConfig      `yaml:"vonage"`
	Plivo       PlivoConfig       `yaml:"plivo"`
	Infobip     InfobipConfig     `yaml:"infobip"`
	MessageBird MessageBirdConfig `yaml:"messagebird"`
	Viber       ViberConfig       `yaml:"viber"`
	WhatsApp    WhatsAppConfig    `yaml:"whatsapp"`
}

type TwilioConfig struct {
	AccountSID          string `yaml:"account_sid"`
	AuthToken           string `yaml:"auth_token"`
	FromNumber          string `yaml:"from_number"`
	MessagingServiceSID string `yaml:"messaging_service_sid"`
	BaseURL             string `yaml:"base_url"`
}

type VonageConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	From      string `yaml:"from"`
	BaseURL   string `yaml:"base_url"`
}

type PlivoConfig struct {
	AuthID    string `yaml:"auth_id"`
	AuthToken string `yaml:"auth_token"`
	From      string `yaml:"from"`
	BaseURL   string `yaml:"base_url"`
}

type InfobipConfig struct {
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	BaseURL string `yaml:"base_url"`
}

type MessageBirdConfig struct {
	AccessKey  string `yaml:"access_key"`
	Originator string `yaml:"originator"`
	BaseURL    string `yaml:"base_url"`
}

type ViberConfig struct {
	AuthToken  string `yaml:"auth_token"`
	SenderName string `yaml:"sender_name"`
	BaseURL    string `yaml:"base_url"`
}

type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	APIVersion    string `yaml:"api_version"`
	BaseURL       string `yaml:"base_url"`
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "dispatch"),
			Password: GetEnv("DB_PASSWORD", "dispatch123"),
			DBName:   GetEnv("DB_NAME", "sms_dispatch"),
		},
		Redis: RedisConfig{
			Enabled:  GetEnvAsBool("REDIS_ENABLED", true),
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		Dispatch: DispatchConfig{
			DefaultDriver:      GetEnv("SMS_DEFAULT_DRIVER", "twilio"),
			FallbackPriority:   GetEnvAsList("SMS_FALLBACK_PRIORITY", []string{"vonage", "plivo"}),
			BatchSize:          GetEnvAsInt("SMS_BATCH_SIZE", 50),
			MaxBodyLength:      GetEnvAsInt("SMS_MAX_BODY_LENGTH", 1600),
			RateLimitPerWindow: GetEnvAsInt("SMS_RATE_LIMIT", 60),
			RateLimitWindow:    GetEnvAsDuration("SMS_RATE_WINDOW", time.Minute),
			RequestTimeout:     time.Duration(GetEnvAsInt("SMS_TIMEOUT_SECONDS", 30)) * time.Second,
			ConnectTimeout:     time.Duration(GetEnvAsInt("SMS_CONNECT_TIMEOUT_SECONDS", 10)) * time.Second,
			BreakerEnabled:     GetEnvAsBool("SMS_BREAKER_ENABLED", true),
			BreakerMaxFailures: uint32(GetEnvAsInt("SMS_BREAKER_MAX_FAILURES", 5)),
			BreakerOpenTimeout: GetEnvAsDuration("SMS_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Carriers: CarriersConfig{
			Twilio: TwilioConfig{
				AccountSID:          GetEnv("TWILIO_ACCOUNT_SID", ""),
				AuthToken:           GetEnv("TWILIO_AUTH_TOKEN", ""),
				FromNumber:          GetEnv("TWILIO_FROM_NUMBER", ""),
				MessagingServiceSID: GetEnv("TWILIO_MESSAGING_SERVICE_SID", ""),
				BaseURL:             GetEnv("TWILIO_BASE_URL", ""),
			},
			Vonage: VonageConfig{
				APIKey:    GetEnv("VONAGE_API_KEY", ""),
				APISecret: GetEnv("VONAGE_API_SECRET", ""),
				From:      GetEnv("VONAGE_FROM", ""),
				BaseURL:   GetEnv("VONAGE_BASE_URL", ""),
			},
			Plivo: PlivoConfig{
				AuthID:    GetEnv("PLIVO_AUTH_ID", ""),
				AuthToken: GetEnv("PLIVO_AUTH_TOKEN", ""),
				From:      GetEnv("PLIVO_FROM", ""),
				BaseURL:   GetEnv("PLIVO_BASE_URL", ""),
			},
			Infobip: InfobipConfig{
				APIKey:  GetEnv("INFOBIP_API_KEY", ""),
				From:    GetEnv("INFOBIP_FROM", ""),
				BaseURL: GetEnv("INFOBIP_BASE_URL", ""),
			},
			MessageBird: MessageBirdConfig{
				AccessKey:  GetEnv("MESSAGEBIRD_ACCESS_KEY", ""),
				Originator: GetEnv("MESSAGEBIRD_ORIGINATOR", ""),
				BaseURL:    GetEnv("MESSAGEBIRD_BASE_URL", ""),
			},
			Viber: ViberConfig{
				AuthToken:  GetEnv("VIBER_AUTH_TOKEN", ""),
				SenderName: GetEnv("VIBER_SENDER_NAME", ""),
				BaseURL:    GetEnv("VIBER_BASE_URL", ""),
			},
			WhatsApp: WhatsAppConfig{
				AccessToken:   GetEnv("WHATSAPP_ACCESS_TOKEN", ""),
				PhoneNumberID: GetEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
				APIVersion:    GetEnv("WHATSAPP_API_VERSION", "v18.0"),
				BaseURL:       GetEnv("WHATSAPP_BASE_URL", ""),
			},
		},
		Scheduler: SchedulerConfig{
			Interval:  time.Duration(GetEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 60)) * time.Second,
			RunLimit:  GetEnvAsInt("SCHEDULER_RUN_LIMIT", 10),
			AutoStart: GetEnvAsBool("AUTO_START_SCHEDULER", true),
		},
		Alert: AlertConfig{
			WebhookURL:     GetEnv("ALERT_WEBHOOK_URL", ""),
			IterationCount: GetEnvAsInt("ALERT_ITERATION_COUNT", 0),
		},
		Auth: AuthConfig{
			MessagesAPIKey:  GetEnv("MESSAGES_API_KEY", ""),
			SchedulerAPIKey: GetEnv("SCHEDULER_API_KEY", ""),
		},
		Log: LogConfig{
			Format: GetEnv("LOG_FORMAT", "json"),
			Level:  GetEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg
}

// LoadCarriersFile replaces the carrier section with the contents of a YAML
// file. Keys absent from the file keep their environment values.
func (c *Config) LoadCarriersFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read carriers file: %w", err)
	}

	if err := yaml.Unmarshal(data, &c.Carriers); err != nil {
		return fmt.Errorf("failed to parse carriers file %s: %w", path, err)
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsList splits a comma separated value, dropping empty entries.
func GetEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
