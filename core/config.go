package core

import (
	"fmt"
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
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		WorkDir          string
		RollbarToken     string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Session  SessionConfig
		OTP      OTPConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr string // empty: in-memory cache
		DB   int
	}

	SessionConfig struct {
		IdleTTL time.Duration
	}

	OTPConfig struct {
		TTL            time.Duration
		Digits         int
		MaxAttempts    int
		ResendCooldown time.Duration
	}

	EmailConfig struct {
		Backend        string // console | sendgrid | smtp
		SendgridAPIKey string
		SMTPHost       string
		SMTPPort       int
		SMTPUser       string
		SMTPPassword   string
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration of the current ENV from defaults, `config/.env.<env>` and the environment.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Ratiba")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("defaultFromEmail", "Ratiba <noreply@localhost>")
	conf.SetDefault("frontendBaseURL", "http://localhost:8080")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "ratiba")
	conf.SetDefault("dbUser", "ratiba")
	conf.SetDefault("dbPassword", "")
	conf.SetDefault("dbAdminUser", "")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("redisAddr", "")
	conf.SetDefault("redisDB", 0)

	conf.SetDefault("sessionIdleTTL", 12*time.Hour)

	conf.SetDefault("otpTTL", 10*time.Minute)
	conf.SetDefault("otpDigits", 6)
	conf.SetDefault("otpMaxAttempts", 5)
	conf.SetDefault("otpResendCooldown", 30*time.Second)

	conf.SetDefault("emailBackend", "console")
	conf.SetDefault("sendgridAPIKey", "")
	conf.SetDefault("smtpHost", "localhost")
	conf.SetDefault("smtpPort", 587)
	conf.SetDefault("smtpUser", "")
	conf.SetDefault("smtpPassword", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	case "QA", "PROD":
		conf.SetDefault("debug", false)
	}
	conf.SetEnvPrefix(env)

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
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		WorkDir:          wd,
		RollbarToken:     conf.GetString("rollbarToken"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Addr: conf.GetString("redisAddr"),
			DB:   conf.GetInt("redisDB"),
		},
		Session: SessionConfig{
			IdleTTL: conf.GetDuration("sessionIdleTTL"),
		},
		OTP: OTPConfig{
			TTL:            conf.GetDuration("otpTTL"),
			Digits:         conf.GetInt("otpDigits"),
			MaxAttempts:    conf.GetInt("otpMaxAttempts"),
			ResendCooldown: conf.GetDuration("otpResendCooldown"),
		},
		Email: EmailConfig{
			Backend:        conf.GetString("emailBackend"),
			SendgridAPIKey: conf.GetString("sendgridAPIKey"),
			SMTPHost:       conf.GetString("smtpHost"),
			SMTPPort:       conf.GetInt("smtpPort"),
			SMTPUser:       conf.GetString("smtpUser"),
			SMTPPassword:   conf.GetString("smtpPassword"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no network backends, short OTP cooldowns.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Ratiba",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:8080",
		defaultFromEmail: "Ratiba <noreply@localhost>",
		Server: ServerConfig{
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Session: SessionConfig{IdleTTL: time.Hour},
		OTP:     OTPConfig{TTL: 10 * time.Minute, Digits: 6, MaxAttempts: 5},
		Email:   EmailConfig{Backend: "console"},
	}
}

// Getwd finds the project root, the nearest parent directory holding a go.mod file.
// go test changes the working directory to the package being tested, so os.Getwd alone is not enough.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			log.Print(fmt.Errorf("core.Getwd: project root not found from %s", wd))
			return wd
		}
		currDir = newDir
	}
}
