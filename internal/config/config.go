// Package config loads PhotoBox settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration read by Load.
type Config struct {
	Addr string

	Isolation     string
	WorkerTimeout time.Duration
	WorkerBin     string
	MaxWorkers    int64
	MaxBodyBytes  int64

	Segmenter  string
	OCREngine  string
	Python     string
	U2NetPath  string
	OCRLang    string
	Confidence float64
	TempDir    string

	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads the configuration from the environment. Invalid values are
// returned as errors.
func Load() (*Config, error) {
	c := &Config{
		Addr:      listenAddr(),
		Isolation: getEnv("PHOTOBOX_ISOLATION", "process"),
		WorkerBin: getEnv("PHOTOBOX_WORKER_BIN", ""),
		Segmenter: getEnv("PHOTOBOX_SEGMENTER", "rembg"),
		OCREngine: getEnv("PHOTOBOX_OCR_ENGINE", "rapidocr"),
		Python:    getEnv("PHOTOBOX_PYTHON", "python3"),
		U2NetPath: getEnv("PHOTOBOX_U2NET_PATH", defaultU2NetPath()),
		OCRLang:   getEnv("PHOTOBOX_OCR_LANGUAGE", "eng"),
		TempDir:   getEnv("PHOTOBOX_TEMP_DIR", ""),
		LogLevel:  getEnv("PHOTOBOX_LOG_LEVEL", "info"),
		LogFormat: getEnv("PHOTOBOX_LOG_FORMAT", "text"),
	}

	var errs []error
	var err error

	if c.WorkerTimeout, err = time.ParseDuration(getEnv("PHOTOBOX_WORKER_TIMEOUT", "30s")); err != nil || c.WorkerTimeout <= 0 {
		errs = append(errs, errors.New("PHOTOBOX_WORKER_TIMEOUT must be a positive duration like 30s"))
	}
	if c.MaxWorkers, err = strconv.ParseInt(getEnv("PHOTOBOX_MAX_WORKERS", "4"), 10, 64); err != nil || c.MaxWorkers < 1 {
		errs = append(errs, errors.New("PHOTOBOX_MAX_WORKERS must be a positive integer"))
	}
	if c.MaxBodyBytes, err = strconv.ParseInt(getEnv("PHOTOBOX_MAX_BODY_BYTES", "20971520"), 10, 64); err != nil || c.MaxBodyBytes < 1 {
		errs = append(errs, errors.New("PHOTOBOX_MAX_BODY_BYTES must be a positive integer"))
	}
	if c.Confidence, err = strconv.ParseFloat(getEnv("PHOTOBOX_OCR_CONFIDENCE", "0.8"), 64); err != nil || c.Confidence <= 0 || c.Confidence > 1 {
		errs = append(errs, errors.New("PHOTOBOX_OCR_CONFIDENCE must be a number greater than 0 and at most 1"))
	}

	errs = append(errs,
		oneOf("PHOTOBOX_ISOLATION", c.Isolation, "process", "inprocess"),
		oneOf("PHOTOBOX_SEGMENTER", c.Segmenter, "rembg", "chromakey"),
		oneOf("PHOTOBOX_OCR_ENGINE", c.OCREngine, "rapidocr", "tesseract"),
		oneOf("PHOTOBOX_LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error"),
		oneOf("PHOTOBOX_LOG_FORMAT", c.LogFormat, "text", "json"),
	)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// listenAddr prefers PHOTOBOX_ADDR, then PORT, then :8000.
func listenAddr() string {
	if addr := getEnv("PHOTOBOX_ADDR", ""); addr != "" {
		return addr
	}
	return ":" + getEnv("PORT", "8000")
}

func defaultU2NetPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".u2net", "u2net.onnx")
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// ApplyTempDir points os.TempDir, and so every temp file created by this
// process and its workers, at TempDir when it is set.
func (c *Config) ApplyTempDir() error {
	if c.TempDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.TempDir, 0o700); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	return os.Setenv("TMPDIR", c.TempDir)
}
