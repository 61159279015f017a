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
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		LoginRateLimit            int // per minute, per client IP
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // mysql | postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	LogConfig struct {
		Dir        string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}

	PaymentConfig struct {
		StatusRefreshInterval time.Duration
		ReceiptPrefix         string
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Log      LogConfig
		Payments PaymentConfig
	}
)

// Address returns the database "host:port".
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and
// the environment. Env vars are prefixed with the environment name, e.g. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
			LoginRateLimit:            v.GetInt("server.loginRateLimit"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          strconv.Itoa(v.GetInt("database.port")),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
			MaxIdleConns:  v.GetInt("database.maxIdleConns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Dir:        v.GetString("log.dir"),
			MaxSizeMB:  v.GetInt("log.maxSizeMB"),
			MaxBackups: v.GetInt("log.maxBackups"),
			MaxAgeDays: v.GetInt("log.maxAgeDays"),
		},
		Payments: PaymentConfig{
			StatusRefreshInterval: v.GetDuration("payments.statusRefreshInterval"),
			ReceiptPrefix:         v.GetString("payments.receiptPrefix"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Shule")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "t8#q2-vd0!mz$r6=hw&kpx4(e!b)_@c9(#un^$jqsa7lew")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Shule <noreply@localhost>")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.loginRateLimit", 10)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.name", "shule")
	v.SetDefault("database.user", "shule")
	v.SetDefault("database.password", "shule")
	v.SetDefault("database.adminUser", "root")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 28)

	v.SetDefault("payments.statusRefreshInterval", time.Hour)
	v.SetDefault("payments.receiptPrefix", "RCP")
}

// NewTestConfig returns a Config suitable for tests: no dotenv, no env lookups.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	fromEmail, _ := mail.ParseAddress(v.GetString("defaultFromEmail"))
	return &Config{
		AppName:          v.GetString("appName"),
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		Server: ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
			LoginRateLimit:            v.GetInt("server.loginRateLimit"),
			DisableReqLogs:            true,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Payments: PaymentConfig{
			StatusRefreshInterval: v.GetDuration("payments.statusRefreshInterval"),
			ReceiptPrefix:         v.GetString("payments.receiptPrefix"),
		},
	}
}
