package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	LogConfig struct {
		File       string // empty: stdout only
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}

	JobsConfig struct {
		Enabled             bool
		ReminderSchedule    string // cron spec
		SyncSchedule        string // cron spec
		DefaultReminderDays []int
		Timeout             time.Duration
	}

	GoogleConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}

	OpenAIConfig struct {
		APIKey string
		Model  string
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		PasswordResetTimeoutDelta time.Duration
		InviteExpirationDelta     time.Duration
		MessageNotifyWindow       time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Log      LogConfig
		Jobs     JobsConfig
		Google   GoogleConfig
		OpenAI   OpenAIConfig
	}
)

// NewConfig reads the configuration from the environment (prefixed by $ENV) and an optional config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "ClassBridge")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", "z7f(c-2p8o!c4xg%wq5a#n1r$l0)m3t^yb9&k6e+jhdsv_ui")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "ClassBridge <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("inviteExpirationDelta", 7*24*time.Hour)
	v.SetDefault("messageNotifyWindow", 5*time.Minute)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "classbridge")
	v.SetDefault("dbUser", "classbridge")
	v.SetDefault("dbPassword", "classbridge")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("logFile", "")
	v.SetDefault("logMaxSizeMB", 100)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("logMaxAgeDays", 28)

	v.SetDefault("jobsEnabled", true)
	v.SetDefault("jobsReminderSchedule", "0 8 * * *")
	v.SetDefault("jobsSyncSchedule", "*/15 * * * *")
	v.SetDefault("jobsDefaultReminderDays", "1,3")
	v.SetDefault("jobsTimeout", 10*time.Minute)

	v.SetDefault("googleClientID", "")
	v.SetDefault("googleClientSecret", "")
	v.SetDefault("googleRedirectURL", "")
	v.SetDefault("openaiApiKey", "")
	v.SetDefault("openaiModel", "gpt-4o-mini")

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		InviteExpirationDelta:     v.GetDuration("inviteExpirationDelta"),
		MessageNotifyWindow:       v.GetDuration("messageNotifyWindow"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Log: LogConfig{
			File:       v.GetString("logFile"),
			MaxSizeMB:  v.GetInt("logMaxSizeMB"),
			MaxBackups: v.GetInt("logMaxBackups"),
			MaxAgeDays: v.GetInt("logMaxAgeDays"),
		},
		Jobs: JobsConfig{
			Enabled:             v.GetBool("jobsEnabled"),
			ReminderSchedule:    v.GetString("jobsReminderSchedule"),
			SyncSchedule:        v.GetString("jobsSyncSchedule"),
			DefaultReminderDays: ParseIntList(v.GetString("jobsDefaultReminderDays")),
			Timeout:             v.GetDuration("jobsTimeout"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("googleClientID"),
			ClientSecret: v.GetString("googleClientSecret"),
			RedirectURL:  v.GetString("googleRedirectURL"),
		},
		OpenAI: OpenAIConfig{
			APIKey: v.GetString("openaiApiKey"),
			Model:  v.GetString("openaiModel"),
		},
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(conf.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// ParseIntList parses a comma separated list of ints, skipping invalid entries.
func ParseIntList(s string) []int {
	var ints []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ints = append(ints, n)
		}
	}
	return ints
}
