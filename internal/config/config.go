package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxChunkChanges is the number of changes after which a new
	// chunk is started.
	DefaultMaxChunkChanges = 1000
	// DefaultMaxBufferedChanges caps the changes a project may have queued.
	DefaultMaxBufferedChanges = 10000
)

// Config represents the main configuration for hist.
type Config struct {
	BaseDir        string           `toml:"base_dir" validate:"required"`
	LogDir         string           `toml:"log_dir" validate:"required"`
	DefaultProject string           `toml:"default_project,omitempty"`
	Vault          VaultConfig      `toml:"vault"`
	Database       DatabaseConfig   `toml:"database"`
	Buffer         BufferConfig     `toml:"buffer"`
	Encryption     EncryptionConfig `toml:"encryption"`
	History        HistoryConfig    `toml:"history"`
	Import         ImportConfig     `toml:"import"`
}

// VaultConfig represents configuration for the object store holding chunks
// and file content.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory filesystem s3 gcs"`
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// GCS-specific fields (only used when Type == "gcs")
	GCSBucket          string `toml:"gcs_bucket,omitempty" validate:"required_if=Type gcs"`
	GCSPrefix          string `toml:"gcs_prefix,omitempty"`
	GCSCredentialsFile string `toml:"gcs_credentials_file,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty" validate:"required_if=Type filesystem"`
}

// DatabaseConfig represents configuration for the metadata database.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// BufferConfig represents configuration for the queued change buffer.
type BufferConfig struct {
	Type       string `toml:"type" validate:"required,oneof=memory filesystem badger redis"`
	BufferDir  string `toml:"buffer_dir,omitempty" validate:"required_if=Type filesystem,required_if=Type badger"`
	RedisAddr  string `toml:"redis_addr,omitempty" validate:"required_if=Type redis"`
	RedisDB    int    `toml:"redis_db,omitempty" validate:"gte=0"`
	MaxChanges int    `toml:"max_changes" validate:"gte=0"` // 0 means DefaultMaxBufferedChanges
}

// EncryptionConfig selects how vault objects are encrypted at rest.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=none age test"` // empty means "none"
	PublicKeyPath  string `toml:"public_key_path,omitempty" validate:"required_if=Type age"`
	PrivateKeyPath string `toml:"private_key_path,omitempty" validate:"required_if=Type age"`
}

// HistoryConfig tunes how history is chunked and loaded.
type HistoryConfig struct {
	MaxChunkChanges int `toml:"max_chunk_changes" validate:"gte=0"` // 0 means DefaultMaxChunkChanges
	Concurrency     int `toml:"concurrency" validate:"gte=0"`       // 0 means 1
}

// ImportConfig holds settings for directory imports.
type ImportConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with local storage
// backends and default key paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Buffer:   BufferConfig{Type: "filesystem", BufferDir: filepath.Join(baseDir, "buffer")},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "hist.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "hist.key"),
		},
		History: HistoryConfig{MaxChunkChanges: DefaultMaxChunkChanges, Concurrency: 1},
	}
}

var validate = validator.New()

// Validate checks the structural constraints of the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// MaxChunkChanges returns the configured chunk size or its default.
func (c *Config) MaxChunkChanges() int {
	if c.History.MaxChunkChanges > 0 {
		return c.History.MaxChunkChanges
	}
	return DefaultMaxChunkChanges
}

// Concurrency returns the configured I/O fan-out, at least 1.
func (c *Config) Concurrency() int {
	if c.History.Concurrency > 0 {
		return c.History.Concurrency
	}
	return 1
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
