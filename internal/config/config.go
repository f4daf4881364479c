// Package config holds the process configuration for the notes server and CLI.
//
// A Config is built once at startup by Load and then passed by value into
// the storage and server constructors. Nothing below the CLI reads the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend types
const (
	StorageLocal  = "local"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRemote = "remote"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full process configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	CORS    CORS    `yaml:"cors"`
	Auth    Auth    `yaml:"auth"`
	Log     Log     `yaml:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Addr returns host:port for net.Listen.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage selects and configures one backend.
type Storage struct {
	// Type is one of local, file, sqlite, remote.
	Type string `yaml:"type"`
	// DataPath is the base directory for local, file and sqlite data.
	DataPath string `yaml:"data_path"`

	File   FileStorage   `yaml:"file"`
	SQLite SQLiteStorage `yaml:"sqlite"`
	Local  LocalStorage  `yaml:"local"`
	Remote RemoteStorage `yaml:"remote"`
}

// FileStorage configures the flat-file backend.
type FileStorage struct {
	NotesDir  string `yaml:"notes_dir"`
	IndexFile string `yaml:"index_file"`
	// Watch reports group files changed by other processes.
	Watch bool `yaml:"watch"`
	// SerializeWrites guards mutating operations with an in-process lock.
	// Off by default; the backend makes no concurrency guarantees.
	SerializeWrites bool `yaml:"serialize_writes"`
	// ReadWorkers bounds concurrent group reads in GetAllNotes.
	ReadWorkers int `yaml:"read_workers"`
}

// SQLiteStorage configures the relational backend.
type SQLiteStorage struct {
	DBFile string `yaml:"db_file"`
}

// LocalStorage configures the embedded key-value backend.
type LocalStorage struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// RemoteStorage configures the REST client backend.
type RemoteStorage struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// CORS configures cross-origin access to the API.
type CORS struct {
	Origin      string `yaml:"origin"`
	Credentials bool   `yaml:"credentials"`
}

// Auth configures optional bearer-token authentication.
type Auth struct {
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearer_token"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		Storage: Storage{
			Type:     StorageFile,
			DataPath: "./data/",
			File: FileStorage{
				NotesDir:    "notes_files/",
				IndexFile:   "index.json",
				ReadWorkers: 8,
			},
			SQLite: SQLiteStorage{DBFile: "notes.db"},
			Local:  LocalStorage{Dir: "local.db"},
			Remote: RemoteStorage{Timeout: 10 * time.Second},
		},
		CORS: CORS{Origin: "*", Credentials: true},
		Log:  Log{Level: "info", Format: "console"},
	}
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds a Config from defaults, the optional YAML file at path, and
// the variables visible through lookup (nil skips the environment).
func Load(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
		}
	}

	if lookup != nil {
		if err := applyEnv(&cfg, lookup); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// applyEnv overlays the deployment environment variables.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT must be a number: %q", ErrInvalidConfig, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("HOST"); ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := lookup("STORAGE_TYPE"); ok && v != "" {
		cfg.Storage.Type = strings.ToLower(v)
	}
	if v, ok := lookup("DATA_BASE_PATH"); ok && v != "" {
		cfg.Storage.DataPath = v
	}
	if v, ok := lookup("REMOTE_BASE_URL"); ok && v != "" {
		cfg.Storage.Remote.BaseURL = v
	}
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		cfg.CORS.Origin = v
	}
	if v, ok := lookup("AUTH_ENABLED"); ok {
		cfg.Auth.Enabled = v == "true"
	}
	if v, ok := lookup("AUTH_TOKEN"); ok {
		cfg.Auth.BearerToken = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks the configuration for values no component can use.
func (c Config) Validate() error {
	switch c.Storage.Type {
	case StorageLocal, StorageFile, StorageSQLite:
		if c.Storage.DataPath == "" && !(c.Storage.Type == StorageLocal && c.Storage.Local.InMemory) {
			return fmt.Errorf("%w: storage.data_path is required for %s storage", ErrInvalidConfig, c.Storage.Type)
		}
	case StorageRemote:
		if c.Storage.Remote.BaseURL == "" {
			return fmt.Errorf("%w: storage.remote.base_url is required for remote storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q (must be local, file, sqlite, or remote)", ErrInvalidConfig, c.Storage.Type)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.BearerToken == "" {
		return fmt.Errorf("%w: auth.bearer_token is required when auth is enabled", ErrInvalidConfig)
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be console or json", ErrInvalidConfig)
	}
	return nil
}

// NotesDir returns the absolute-or-relative partition directory of the
// flat-file backend.
func (s Storage) NotesDir() string {
	return filepath.Join(s.DataPath, s.File.NotesDir)
}

// IndexPath returns the manifest path of the flat-file backend.
func (s Storage) IndexPath() string {
	return filepath.Join(s.DataPath, s.File.IndexFile)
}

// SQLitePath returns the database file of the relational backend.
func (s Storage) SQLitePath() string {
	return filepath.Join(s.DataPath, s.SQLite.DBFile)
}

// LocalDir returns the directory of the embedded key-value backend.
func (s Storage) LocalDir() string {
	return filepath.Join(s.DataPath, s.Local.Dir)
}

// PIDPath returns the file serve records its process id in.
func (s Storage) PIDPath() string {
	return filepath.Join(s.DataPath, "server.pid")
}
