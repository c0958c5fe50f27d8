package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/gridsource-go/auth"
	"github.com/hugr-lab/gridsource-go/catalog"
	"github.com/hugr-lab/gridsource-go/limit"
)

// ErrInvalidConfig indicates the configuration file is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// Source kinds.
const (
	KindMemory = "memory"
	KindSQL    = "sql"
)

// Config is the gridsource configuration file.
//
//	log:
//	  level: info
//	  format: text
//	http:
//	  address: ":8080"
//	flight:
//	  address: ":50051"
//	limits:
//	  - name: warehouse
//	    fill_rate: 10
//	    max_concurrency: 2
//	sources:
//	  - name: people
//	    kind: memory
//	    file: people.json
//	    schema:
//	      - {name: id, type: int64}
//	      - {name: name, type: string}
//	  - name: orders
//	    kind: sql
//	    driver: duckdb
//	    dsn: orders.db
//	    table: main.orders
//	    limit: warehouse
type Config struct {
	Log     LogConfig          `yaml:"log"`
	HTTP    HTTPConfig         `yaml:"http"`
	Flight  FlightConfig       `yaml:"flight"`
	Auth    AuthConfig         `yaml:"auth"`
	Limits  []limit.Definition `yaml:"limits"`
	Sources []SourceConfig     `yaml:"sources"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// OPTIONAL: defaults to info.
	Level string `yaml:"level"`

	// Format is text or json.
	// OPTIONAL: defaults to text.
	Format string `yaml:"format"`
}

// HTTPConfig configures the HTTP host.
type HTTPConfig struct {
	// Address to listen on.
	// OPTIONAL: defaults to ":8080".
	Address string `yaml:"address"`

	// RequestTimeout bounds each get-rows request.
	// OPTIONAL: 0 waits until the client goes away.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// DisableCompression turns off zstd response compression.
	DisableCompression bool `yaml:"disable_compression"`
}

// FlightConfig configures the Arrow Flight host.
type FlightConfig struct {
	// Address to listen on.
	// OPTIONAL: the Flight host is not started when empty.
	Address string `yaml:"address"`

	// Advertise is the location put into flight endpoints
	// (e.g. "grpc://data.example.com:50051").
	// OPTIONAL.
	Advertise string `yaml:"advertise"`

	// RequestTimeout bounds each DoGet.
	// OPTIONAL.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxMessageSize is the gRPC message size limit in bytes.
	// OPTIONAL.
	MaxMessageSize int `yaml:"max_message_size"`
}

// AuthConfig lists the accepted bearer tokens.
// Authentication is disabled when Tokens is empty.
type AuthConfig struct {
	Tokens []auth.Token `yaml:"tokens"`
}

// SourceConfig declares one source of the catalog.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Comment string `yaml:"comment"`

	// Kind is memory or sql.
	Kind string `yaml:"kind"`

	// File is the JSON records file of a memory source.
	File string `yaml:"file"`

	// Driver is duckdb or pgx; DSN is passed to it unchanged.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// SQL source settings, see sqlsource.Config.
	Table       string            `yaml:"table"`
	Columns     []string          `yaml:"columns"`
	ColumnIDs   map[string]string `yaml:"column_ids"`
	Expressions map[string]string `yaml:"expressions"`
	Geometry    []string          `yaml:"geometry"`
	CountRows   bool              `yaml:"count_rows"`

	// Limit names an entry of Config.Limits. Sources naming the same limit
	// share it.
	// OPTIONAL.
	Limit string `yaml:"limit"`

	// FetchTimeout bounds each fetch.
	// OPTIONAL.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Keys is the payload key style, lowerCamel or asIs.
	// OPTIONAL: defaults to lowerCamel.
	Keys string `yaml:"keys"`

	// CacheBlockSize is advertised in the grid options.
	// OPTIONAL.
	CacheBlockSize int `yaml:"cache_block_size"`

	// Schema declares the columns served over Arrow Flight. Sources without
	// a schema are only served over HTTP.
	// OPTIONAL.
	Schema []catalog.ColumnSpec `yaml:"schema"`
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes and validates YAML configuration. Unknown keys are
// rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Kind == "" {
			s.Kind = KindMemory
		}
		if s.Kind == KindSQL && s.Driver == "" {
			s.Driver = "duckdb"
		}
	}
}

func (c *Config) validate() error {
	var errs []string

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.HTTP.RequestTimeout < 0 || c.Flight.RequestTimeout < 0 {
		errs = append(errs, "request timeouts must not be negative")
	}

	limits := make(map[string]bool, len(c.Limits))
	for _, d := range c.Limits {
		if d.Name == "" {
			errs = append(errs, "limit name cannot be empty")
			continue
		}
		if limits[d.Name] {
			errs = append(errs, fmt.Sprintf("duplicate limit %q", d.Name))
		}
		limits[d.Name] = true
		if err := d.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, s := range c.Sources {
		prefix := fmt.Sprintf("source %q", s.Name)
		switch s.Kind {
		case KindMemory:
			if s.File == "" {
				errs = append(errs, prefix+": file is required")
			}
		case KindSQL:
			if s.Table == "" {
				errs = append(errs, prefix+": table is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown kind %q", prefix, s.Kind))
		}
		if s.Limit != "" && !limits[s.Limit] {
			errs = append(errs, fmt.Sprintf("%s: unknown limit %q", prefix, s.Limit))
		}
		if s.FetchTimeout < 0 || s.CacheBlockSize < 0 {
			errs = append(errs, prefix+": fetch_timeout and cache_block_size must not be negative")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Source returns the named source config, or nil.
func (c *Config) Source(name string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}
