package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Metrics    MetricsConfig
	Health     HealthConfig
	Alerting   AlertingConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	Security   SecurityConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// MetricsConfig управляет агрегатором метрик запросов и операций
type MetricsConfig struct {
	SlowRequestThreshold   time.Duration
	SlowOperationThreshold time.Duration
	SlowLogSize            int
	Retention              time.Duration
	CleanupInterval        time.Duration
}

// HealthConfig управляет оркестратором health-проверок
type HealthConfig struct {
	CheckTimeout         time.Duration
	HistorySize          int
	DiskPath             string
	DiskWarningPercent   float64
	DiskCriticalPercent  float64
	SlowDatabaseResponse time.Duration
}

// Thresholds - пара порогов warning/critical для одного класса алертов
type Thresholds struct {
	Warning  float64
	Critical float64
}

// AlertingConfig перечисляет все параметры движка алертов
type AlertingConfig struct {
	ErrorRate          Thresholds // %
	ResponseTime       Thresholds // ms
	DatabasePool       Thresholds // %
	Memory             Thresholds // %
	CPU                Thresholds // %
	SuppressionWindow  time.Duration
	EvaluationInterval time.Duration
	HistorySize        int
	NotifyTimeout      time.Duration

	Email   EmailChannelConfig
	Webhook WebhookChannelConfig
	Chat    ChatChannelConfig
}

type EmailChannelConfig struct {
	Enabled    bool
	SMTPAddr   string
	From       string
	Recipients []string
	Username   string
	Password   string
}

type WebhookChannelConfig struct {
	Enabled bool
	URL     string
}

type ChatChannelConfig struct {
	Enabled    bool
	WebhookURL string
	Channel    string
}

type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

type CloudWatchConfig struct {
	MetricsEnabled       bool
	LogsEnabled          bool
	Region               string
	Endpoint             string
	AccessKeyID          string
	SecretAccessKey      string
	MetricsNamespace     string
	MetricsDimensions    map[string]string
	MetricsBufferSize    int
	MetricsFlushInterval time.Duration
	LogGroupName         string
	LogStreamName        string
	LogsBufferSize       int
	LogsFlushInterval    time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies - CIDR/IP прокси, чьим X-Forwarded-For можно верить
	TrustedProxies []string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: p.duration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", true),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "crm"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", "25"),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", "5"),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", "0"),
		},
		Metrics: MetricsConfig{
			SlowRequestThreshold:   p.millis("METRICS_SLOW_REQUEST_MS", "1000"),
			SlowOperationThreshold: p.millis("METRICS_SLOW_OPERATION_MS", "100"),
			SlowLogSize:            p.int("METRICS_SLOW_LOG_SIZE", "100"),
			Retention:              p.duration("METRICS_RETENTION", "1h"),
			CleanupInterval:        p.duration("METRICS_CLEANUP_INTERVAL", "1h"),
		},
		Health: HealthConfig{
			CheckTimeout:         p.duration("HEALTH_CHECK_TIMEOUT", "5s"),
			HistorySize:          p.int("HEALTH_HISTORY_SIZE", "100"),
			DiskPath:             getEnv("HEALTH_DISK_PATH", "/"),
			DiskWarningPercent:   p.float("HEALTH_DISK_WARNING_PERCENT", "85"),
			DiskCriticalPercent:  p.float("HEALTH_DISK_CRITICAL_PERCENT", "95"),
			SlowDatabaseResponse: p.millis("HEALTH_DB_SLOW_MS", "1000"),
		},
		Alerting: AlertingConfig{
			ErrorRate:          p.thresholds("ALERT_ERROR_RATE", "5", "10"),
			ResponseTime:       p.thresholds("ALERT_RESPONSE_TIME", "1000", "3000"),
			DatabasePool:       p.thresholds("ALERT_DB_POOL", "80", "95"),
			Memory:             p.thresholds("ALERT_MEMORY", "80", "90"),
			CPU:                p.thresholds("ALERT_CPU", "80", "95"),
			SuppressionWindow:  p.duration("ALERT_SUPPRESSION_WINDOW", "5m"),
			EvaluationInterval: p.duration("ALERT_EVALUATION_INTERVAL", "1m"),
			HistorySize:        p.int("ALERT_HISTORY_SIZE", "500"),
			NotifyTimeout:      p.duration("ALERT_NOTIFY_TIMEOUT", "10s"),
			Email: EmailChannelConfig{
				Enabled:    getEnvBool("ALERT_EMAIL_ENABLED", false),
				SMTPAddr:   getEnv("ALERT_EMAIL_SMTP_ADDR", ""),
				From:       getEnv("ALERT_EMAIL_FROM", "alerts@crm.local"),
				Recipients: splitCSV(getEnv("ALERT_EMAIL_RECIPIENTS", "")),
				Username:   getEnv("ALERT_EMAIL_USERNAME", ""),
				Password:   getEnv("ALERT_EMAIL_PASSWORD", ""),
			},
			Webhook: WebhookChannelConfig{
				Enabled: getEnvBool("ALERT_WEBHOOK_ENABLED", false),
				URL:     getEnv("ALERT_WEBHOOK_URL", ""),
			},
			Chat: ChatChannelConfig{
				Enabled:    getEnvBool("ALERT_CHAT_ENABLED", false),
				WebhookURL: getEnv("ALERT_CHAT_WEBHOOK_URL", ""),
				Channel:    getEnv("ALERT_CHAT_CHANNEL", "#alerts"),
			},
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("ALERT_NATS_SUBJECT_PREFIX", "crm.alerts"),
		},
		CloudWatch: CloudWatchConfig{
			MetricsEnabled:       getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			LogsEnabled:          getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			Region:               getEnv("AWS_REGION", "us-east-1"),
			Endpoint:             getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MetricsNamespace:     getEnv("CLOUDWATCH_METRICS_NAMESPACE", "CRM/Backend"),
			MetricsDimensions:    parseDimensions(getEnv("CLOUDWATCH_METRICS_DIMENSIONS", "")),
			MetricsBufferSize:    p.int("CLOUDWATCH_METRICS_BUFFER_SIZE", "100"),
			MetricsFlushInterval: p.duration("CLOUDWATCH_METRICS_FLUSH_INTERVAL", "10s"),
			LogGroupName:         getEnv("CLOUDWATCH_LOG_GROUP", "/crm/backend"),
			LogStreamName:        getEnv("CLOUDWATCH_LOG_STREAM", hostname()),
			LogsBufferSize:       p.int("CLOUDWATCH_LOGS_BUFFER_SIZE", "50"),
			LogsFlushInterval:    p.duration("CLOUDWATCH_LOGS_FLUSH_INTERVAL", "5s"),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
			RateLimitRPS:   p.float("RATE_LIMIT_RPS", "50"),
			RateLimitBurst: p.int("RATE_LIMIT_BURST", "100"),
			TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", "")),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}

	pairs := map[string]Thresholds{
		"ALERT_ERROR_RATE":    c.Alerting.ErrorRate,
		"ALERT_RESPONSE_TIME": c.Alerting.ResponseTime,
		"ALERT_DB_POOL":       c.Alerting.DatabasePool,
		"ALERT_MEMORY":        c.Alerting.Memory,
		"ALERT_CPU":           c.Alerting.CPU,
	}
	for name, pair := range pairs {
		if pair.Warning > pair.Critical {
			return fmt.Errorf("%s_WARNING (%.2f) must not exceed %s_CRITICAL (%.2f)",
				name, pair.Warning, name, pair.Critical)
		}
	}

	if c.Alerting.SuppressionWindow < 0 {
		return fmt.Errorf("ALERT_SUPPRESSION_WINDOW must not be negative")
	}
	if c.Alerting.EvaluationInterval <= 0 {
		return fmt.Errorf("ALERT_EVALUATION_INTERVAL must be positive")
	}
	if c.Metrics.CleanupInterval <= 0 {
		return fmt.Errorf("METRICS_CLEANUP_INTERVAL must be positive")
	}

	for _, proxy := range c.Security.TrustedProxies {
		if !validProxyEntry(proxy) {
			return fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", proxy)
		}
	}

	email := c.Alerting.Email
	if email.Enabled && (email.SMTPAddr == "" || len(email.Recipients) == 0) {
		return fmt.Errorf("ALERT_EMAIL_SMTP_ADDR and ALERT_EMAIL_RECIPIENTS are required when ALERT_EMAIL_ENABLED=true")
	}
	if c.Alerting.Webhook.Enabled && c.Alerting.Webhook.URL == "" {
		return fmt.Errorf("ALERT_WEBHOOK_URL is required when ALERT_WEBHOOK_ENABLED=true")
	}
	if c.Alerting.Chat.Enabled && c.Alerting.Chat.WebhookURL == "" {
		return fmt.Errorf("ALERT_CHAT_WEBHOOK_URL is required when ALERT_CHAT_ENABLED=true")
	}

	return nil
}

func validProxyEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// parser собирает первую ошибку разбора, чтобы Load оставался линейным
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) millis(key, def string) time.Duration {
	ms := p.float(key, def)
	return time.Duration(ms * float64(time.Millisecond))
}

func (p *parser) int(key, def string) int {
	v, err := strconv.Atoi(getEnv(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) float(key, def string) float64 {
	v, err := strconv.ParseFloat(getEnv(key, def), 64)
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) thresholds(prefix, warning, critical string) Thresholds {
	return Thresholds{
		Warning:  p.float(prefix+"_WARNING", warning),
		Critical: p.float(prefix+"_CRITICAL", critical),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// parseDimensions разбирает "Env=prod,Service=crm" в map
func parseDimensions(raw string) map[string]string {
	dims := make(map[string]string)
	for _, item := range splitCSV(raw) {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			continue
		}
		dims[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dims
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "crm-monitoring"
	}
	return name
}
