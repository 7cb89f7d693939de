package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Upload   UploadConfig
		Ingest   IngestConfig
		Report   ReportConfig
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		AllowedOrigins  []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	UploadConfig struct {
		MaxFiles          int
		MaxFileSize       int64 // bytes
		AllowedExtensions []string
	}

	IngestConfig struct {
		HeaderScanRows      int
		MinConductedPeriods int // 0 disables the rule
	}

	ReportConfig struct {
		Name  string // filename prefix
		Title string
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// NewConfig loads the configuration of the current environment.
// Values are read from the environment (prefixed with the upper-cased ENV, eg. DEV_DATABASE_HOST)
// after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Mahudhurio")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 60*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "mahudhurio")
	v.SetDefault("database.user", "mahudhurio")
	v.SetDefault("database.password", "mahudhurio")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("upload.maxFiles", 20)
	v.SetDefault("upload.maxFileSize", int64(16<<20))
	v.SetDefault("upload.allowedExtensions", []string{".xlsx", ".xls", ".csv"})

	v.SetDefault("ingest.headerScanRows", 10)
	v.SetDefault("ingest.minConductedPeriods", 0)

	v.SetDefault("report.name", "attendance_report")
	v.SetDefault("report.title", "Attendance Report")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowedOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Upload: UploadConfig{
			MaxFiles:          v.GetInt("upload.maxFiles"),
			MaxFileSize:       v.GetInt64("upload.maxFileSize"),
			AllowedExtensions: v.GetStringSlice("upload.allowedExtensions"),
		},
		Ingest: IngestConfig{
			HeaderScanRows:      v.GetInt("ingest.headerScanRows"),
			MinConductedPeriods: v.GetInt("ingest.minConductedPeriods"),
		},
		Report: ReportConfig{
			Name:  v.GetString("report.name"),
			Title: v.GetString("report.title"),
		},
	}
}

// NewTestConfig returns the configuration used by tests; it does not touch the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:      "TEST",
		Build:    "test",
		TestMode: true,
		AppName:  "Mahudhurio",
		Server: ServerConfig{
			Addr:            ":0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Upload: UploadConfig{
			MaxFiles:          20,
			MaxFileSize:       16 << 20,
			AllowedExtensions: []string{".xlsx", ".xls", ".csv"},
		},
		Ingest: IngestConfig{HeaderScanRows: 10},
		Report: ReportConfig{Name: "attendance_report", Title: "Attendance Report"},
	}
}

func (conf *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s debug=%t", conf.AppName, conf.Build, conf.Env, conf.Debug)
}
