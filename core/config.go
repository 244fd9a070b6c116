package core

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName  string
	Debug    bool
	TestMode bool
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string

	Server struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	SessionAPI struct {
		BaseURL       string
		Timeout       time.Duration
		BeaconTimeout time.Duration
	}

	Tracking struct {
		TickInterval      time.Duration
		HeartbeatInterval time.Duration
		SessionWait       time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	RollbarToken string
}

func (conf *Config) IsProd() bool { return conf.Env == "PROD" }

// DatabaseAddress returns the database server address in "host:port" format.
func (conf *Config) DatabaseAddress() string {
	return fmt.Sprintf("%s:%d", conf.Database.Host, conf.Database.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "dev")
	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:6060")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("sessionApiUrl", "http://localhost:8000")
	v.SetDefault("sessionApiTimeout", 10*time.Second)
	v.SetDefault("sessionApiBeaconTimeout", 3*time.Second)
	v.SetDefault("trackingTickInterval", time.Second)
	v.SetDefault("trackingHeartbeatInterval", 30*time.Second)
	v.SetDefault("trackingSessionWait", 10*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "darasa")
	v.SetDefault("databaseUser", "darasa")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseDisableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := ".env." + strings.ToLower(env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:  v.GetString("appName"),
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    v.GetString("build"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.DebugHost = v.GetString("serverDebugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	conf.SessionAPI.BaseURL = v.GetString("sessionApiUrl")
	conf.SessionAPI.Timeout = v.GetDuration("sessionApiTimeout")
	conf.SessionAPI.BeaconTimeout = v.GetDuration("sessionApiBeaconTimeout")
	conf.Tracking.TickInterval = v.GetDuration("trackingTickInterval")
	conf.Tracking.HeartbeatInterval = v.GetDuration("trackingHeartbeatInterval")
	conf.Tracking.SessionWait = v.GetDuration("trackingSessionWait")
	conf.Database.Engine = v.GetString("databaseEngine")
	conf.Database.Name = v.GetString("databaseName")
	conf.Database.User = v.GetString("databaseUser")
	conf.Database.Password = v.GetString("databasePassword")
	conf.Database.AdminUser = v.GetString("databaseAdminUser")
	conf.Database.AdminPassword = v.GetString("databaseAdminPassword")
	conf.Database.Host = v.GetString("databaseHost")
	conf.Database.Port = v.GetInt("databasePort")
	conf.Database.DisableTLS = v.GetBool("databaseDisableTLS")
	conf.RollbarToken = v.GetString("rollbarToken")
	return conf
}
