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
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetRate         float64 // requests per minute per client
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CanvasConfig struct {
		Timezone         string
		FetchTimeout     time.Duration
		SyncSchedule     string // cron spec
		ReminderSchedule string // cron spec
	}

	UploadsConfig struct {
		Dir     string
		MaxSize int64 // bytes
	}

	Config struct {
		Env       string
		Build     string
		AppName   string
		Debug     bool
		TestMode  bool
		SecretKey string
		WorkDir   string

		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string

		Server   ServerConfig
		Database DatabaseConfig
		Canvas   CanvasConfig
		Uploads  UploadsConfig

		defaultFromEmail string
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// Location returns the timezone Canvas feed dates are converted to. Falls back to UTC.
func (cc CanvasConfig) Location() *time.Location {
	if cc.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cc.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig reads the app configuration from env vars prefixed with the current ENV
// (DEV (default), TEST, QA, PROD). A config/.env.<env> file is loaded first if it exists.
func NewConfig() *Config {
	v := viper.New()
	workDir := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "CampusMate")
	v.SetDefault("secretKey", "x8#k2-ma!7qz=p0d(cw)r$u4+3nbj%f5*h9e^tlyv1s_o6g")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetRate", 5.0)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "campusmate")
	v.SetDefault("database.user", "campusmate")
	v.SetDefault("database.password", "campusmate")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("canvas.timezone", "America/Phoenix")
	v.SetDefault("canvas.fetchTimeout", 30*time.Second)
	v.SetDefault("canvas.syncSchedule", "@every 6h")
	v.SetDefault("canvas.reminderSchedule", "0 8 * * *")

	v.SetDefault("uploads.dir", filepath.Join(workDir, "uploads"))
	v.SetDefault("uploads.maxSize", int64(16<<20))

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:       env,
		Build:     v.GetString("build"),
		AppName:   v.GetString("appName"),
		Debug:     v.GetBool("debug"),
		TestMode:  v.GetBool("testMode"),
		SecretKey: v.GetString("secretKey"),
		WorkDir:   workDir,

		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Addr:                      v.GetString("server.addr"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetRate:         v.GetFloat64("server.passwordResetRate"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Canvas: CanvasConfig{
			Timezone:         v.GetString("canvas.timezone"),
			FetchTimeout:     v.GetDuration("canvas.fetchTimeout"),
			SyncSchedule:     v.GetString("canvas.syncSchedule"),
			ReminderSchedule: v.GetString("canvas.reminderSchedule"),
		},
		Uploads: UploadsConfig{
			Dir:     v.GetString("uploads.dir"),
			MaxSize: v.GetInt64("uploads.maxSize"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, test mode on.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "CampusMate",
		TestMode:                  true,
		SecretKey:                 "secret",
		WorkDir:                   os.TempDir(),
		FrontendBaseURL:           "http://localhost:8080",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetRate:         1000,
		},
		Canvas: CanvasConfig{
			Timezone:     "UTC",
			FetchTimeout: 5 * time.Second,
		},
		Uploads: UploadsConfig{
			Dir:     filepath.Join(os.TempDir(), "campusmate-uploads"),
			MaxSize: 16 << 20,
		},
	}
}
