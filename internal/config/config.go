// Package config loads popgraph settings from an optional YAML file and
// POPGRAPH_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"popgraph/internal/blob"
	"popgraph/internal/extract"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POPGRAPH_"

// Storage drivers accepted by StorageConfig.Driver.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Chart   ChartConfig   `yaml:"chart"`
	Extract ExtractConfig `yaml:"extract"`
	Log     LogConfig     `yaml:"log"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type BlobConfig struct {
	Driver    string   `yaml:"driver"`
	FSRoot    string   `yaml:"fs_root"`
	FSBaseURL string   `yaml:"fs_base_url"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type ChartConfig struct {
	Prefix string `yaml:"prefix"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type ExtractConfig struct {
	Category string `yaml:"category"`
	// Sheet names the worksheet to read; empty selects the first one.
	Sheet      string `yaml:"sheet"`
	HeaderRows int    `yaml:"header_rows"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageSQLite, SQLitePath: "popgraph.db"},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "./static"},
		Chart:   ChartConfig{Prefix: "img/", Width: 1600, Height: 1000},
		Extract: ExtractConfig{Category: extract.DefaultCategory, HeaderRows: 1},
		Log:     LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads path when non-empty, then applies environment overrides and
// validates the result. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty file decodes to io.EOF and keeps the defaults.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_FS_BASE_URL", &c.Blob.FSBaseURL)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("CHART_PREFIX", &c.Chart.Prefix)
	str("CATEGORY", &c.Extract.Category)
	str("SHEET", &c.Extract.Sheet)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_LEVEL", &c.Log.Level)
	if v := getenv(EnvPrefix + "BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "HEADER_ROWS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHEADER_ROWS: %w", EnvPrefix, err)
		}
		c.Extract.HeaderRows = n
	}
	return nil
}

// Validate checks driver names and required backend settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver postgres requires %sPOSTGRES_DSN", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob driver s3 requires %sBLOB_S3_BUCKET", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Chart.Width < 0 || c.Chart.Height < 0 {
		return fmt.Errorf("chart size %dx%d is negative", c.Chart.Width, c.Chart.Height)
	}
	if c.Extract.HeaderRows < 0 {
		return fmt.Errorf("extract header_rows %d is negative", c.Extract.HeaderRows)
	}
	return nil
}

// SheetOptions converts the extract section into extract.SheetOptions.
func (c Config) SheetOptions() extract.SheetOptions {
	rows := c.Extract.HeaderRows
	return extract.SheetOptions{Sheet: c.Extract.Sheet, HeaderRows: &rows}
}

// BlobStore converts the blob section into blob.Config. Credentials come from
// the default AWS chain.
func (c Config) BlobStore() blob.Config {
	return blob.Config{
		Driver:    blob.Driver(c.Blob.Driver),
		FSRoot:    c.Blob.FSRoot,
		FSBaseURL: c.Blob.FSBaseURL,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}
