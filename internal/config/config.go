package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var DefaultEnvConfig *envConfig

type envConfig struct {
	// http config
	APP_PORT string
	// database config
	DB_HOST              string
	DB_PORT              int
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	DB_SSL_MODE          string
	DB_CONN_MAX_LIFETIME time.Duration
	DB_MAX_IDLE_CONNS    int
	DB_MAX_OPEN_CONNS    int
	// export config
	EXPORT_QUEUE_CAPACITY int
	EXPORT_CHUNK_CAPACITY int
	EXPORT_WORKERS        int
	EXPORT_TEMP_DIR       string
	EXPORT_FIXED_TITLES   bool
	EXPORT_STYLE_FILE     string
	EXPORT_TIMEOUT        time.Duration
	// s3 config
	S3_REGION string
	S3_BUCKET string
	S3_PREFIX string
	// reports
	REPORTS_FILE string
	// logger config
	LOG_FILE_PATH string
}

// LoadEnvConfig reads .env when present and fills DefaultEnvConfig from the
// environment.
func LoadEnvConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	DefaultEnvConfig = &envConfig{
		APP_PORT:              getEnvString("APP_PORT", "8080"),
		DB_HOST:               getEnvString("DB_HOST", "localhost"),
		DB_PORT:               getEnvInt("DB_PORT", 5432),
		DB_USER:               getEnvString("DB_USER", "postgres"),
		DB_PASSWORD:           getEnvString("DB_PASSWORD", "postgres"),
		DB_NAME:               getEnvString("DB_NAME", "postgres"),
		DB_SSL_MODE:           getEnvString("DB_SSL_MODE", "disable"),
		DB_CONN_MAX_LIFETIME:  getEnvDuration("DB_CONN_MAX_LIFETIME", 20*time.Minute),
		DB_MAX_IDLE_CONNS:     getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DB_MAX_OPEN_CONNS:     getEnvInt("DB_MAX_OPEN_CONNS", 100),
		EXPORT_QUEUE_CAPACITY: getEnvInt("EXPORT_QUEUE_CAPACITY", 1024),
		EXPORT_CHUNK_CAPACITY: getEnvInt("EXPORT_CHUNK_CAPACITY", 0),
		EXPORT_WORKERS:        getEnvInt("EXPORT_WORKERS", 0),
		EXPORT_TEMP_DIR:       getEnvString("EXPORT_TEMP_DIR", os.TempDir()),
		EXPORT_FIXED_TITLES:   getEnvBool("EXPORT_FIXED_TITLES", false),
		EXPORT_STYLE_FILE:     getEnvString("EXPORT_STYLE_FILE", ""),
		EXPORT_TIMEOUT:        getEnvDuration("EXPORT_TIMEOUT", time.Hour),
		S3_REGION:             getEnvString("S3_REGION", ""),
		S3_BUCKET:             getEnvString("S3_BUCKET", ""),
		S3_PREFIX:             getEnvString("S3_PREFIX", "exports"),
		REPORTS_FILE:          getEnvString("REPORTS_FILE", ""),
		LOG_FILE_PATH:         getEnvString("LOG_FILE_PATH", ""),
	}
	return nil
}

// Report is a named SQL query that can be exported on demand.
type Report struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Query       string            `yaml:"query"`
	Table       string            `yaml:"table"`
	Columns     []string          `yaml:"columns"`
	Filters     []string          `yaml:"filters"`
	OrderBy     []string          `yaml:"order_by"`
	Limit       int               `yaml:"limit"`
	SheetName   string            `yaml:"sheet_name"`
	Capacity    int               `yaml:"capacity"`
	Formats     map[string]string `yaml:"formats"`
}

type reportsFile struct {
	Reports []Report `yaml:"reports"`
}

// LoadReports reads report definitions keyed by name.
func LoadReports(path string) (map[string]Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reports file: %w", err)
	}

	var f reportsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reports file: %w", err)
	}

	reports := make(map[string]Report, len(f.Reports))
	for _, r := range f.Reports {
		if r.Name == "" || (strings.TrimSpace(r.Query) == "" && r.Table == "") {
			return nil, fmt.Errorf("report %q: name and either query or table are required", r.Name)
		}
		if _, dup := reports[r.Name]; dup {
			return nil, fmt.Errorf("report %q defined twice", r.Name)
		}
		if r.SheetName == "" {
			r.SheetName = r.Name
		}
		reports[r.Name] = r
	}
	return reports, nil
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
