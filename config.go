package adminAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/adminAuth/password"
	"github.com/MrEthical07/adminAuth/session"
)

// Config holds every setting a Service reads at construction time.
//
// Config values are copied by the Builder; mutating a Config after Build has no effect.
type Config struct {
	Backend   BackendConfig
	Storage   StorageConfig
	Password  PasswordConfig
	Bootstrap BootstrapConfig
	Throttle  ThrottleConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendMode selects where accounts and sessions live.
type BackendMode string

const (
	// BackendLocal keeps accounts and sessions in the configured storage.
	BackendLocal BackendMode = "local"
	// BackendRemote delegates to a remote auth service.
	BackendRemote BackendMode = "remote"
)

// BackendConfig selects the credential and session backends once at startup.
type BackendConfig struct {
	Mode BackendMode
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageDriver names a storage.Store implementation.
type StorageDriver string

const (
	// StorageMemory keeps state in process memory.
	StorageMemory StorageDriver = "memory"
	// StorageFile keeps state in a single JSON file.
	StorageFile StorageDriver = "file"
	// StorageRedis keeps state in Redis; the client is supplied with Builder.WithRedis.
	StorageRedis StorageDriver = "redis"
)

// StorageConfig describes the key-value resource and the keys used inside it.
type StorageConfig struct {
	Driver      StorageDriver
	FilePath    string
	RedisPrefix string
	UsersKey    string
	SessionKey  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and secret length bounds.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

func (p PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:           p.Memory,
		Time:             p.Time,
		Parallelism:      p.Parallelism,
		SaltLength:       p.SaltLength,
		KeyLength:        p.KeyLength,
		MinPasswordBytes: p.MinPasswordBytes,
		MaxPasswordBytes: p.MaxPasswordBytes,
	}
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig describes the administrator created when the account list is empty.
type BootstrapConfig struct {
	Enabled     bool
	AdminName   string
	AdminEmail  string
	AdminSecret string
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed logins per email, and optionally per client IP,
// using Redis counters. It needs a client supplied with Builder.WithRedis.
type ThrottleConfig struct {
	Enabled          bool
	MaxLoginAttempts int
	Cooldown         time.Duration
	PerIP            bool
	KeyPrefix        string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the login latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultUsersKey is the storage key of the local account list.
const DefaultUsersKey = "pk_system_users"

// DefaultConfig returns a local, in-memory configuration with the dashboard's
// default administrator bootstrap enabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Mode: BackendLocal,
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			RedisPrefix: "dash",
			UsersKey:    DefaultUsersKey,
			SessionKey:  session.DefaultKey,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinPasswordBytes: 0,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Bootstrap: BootstrapConfig{
			Enabled:     true,
			AdminName:   "Administrador",
			AdminEmail:  "admin@exemplo.com",
			AdminSecret: "admin123",
		},
		Throttle: ThrottleConfig{
			Enabled:          false,
			MaxLoginAttempts: 5,
			Cooldown:         15 * time.Minute,
			PerIP:            false,
			KeyPrefix:        "dash:throttle:",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Backend
	switch c.Backend.Mode {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("Backend Mode must be %q or %q", BackendLocal, BackendRemote)
	}

	// Storage
	switch c.Storage.Driver {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage FilePath required for file driver")
		}
	default:
		return errors.New("Storage Driver must be 'memory', 'file' or 'redis'")
	}
	if c.Storage.UsersKey == "" {
		return errors.New("Storage UsersKey must not be empty")
	}
	if c.Storage.SessionKey == "" {
		return errors.New("Storage SessionKey must not be empty")
	}
	if c.Storage.UsersKey == c.Storage.SessionKey {
		return errors.New("Storage UsersKey and SessionKey must differ")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 0 || c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password length bounds must be >= 0")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MinPasswordBytes > c.Password.MaxPasswordBytes {
		return errors.New("Password MinPasswordBytes exceeds MaxPasswordBytes")
	}

	// Bootstrap
	if c.Bootstrap.Enabled {
		if strings.TrimSpace(c.Bootstrap.AdminName) == "" ||
			strings.TrimSpace(c.Bootstrap.AdminEmail) == "" ||
			c.Bootstrap.AdminSecret == "" {
			return errors.New("Bootstrap requires AdminName, AdminEmail and AdminSecret")
		}
		if len(c.Bootstrap.AdminSecret) < c.Password.MinPasswordBytes {
			return errors.New("Bootstrap AdminSecret is shorter than Password MinPasswordBytes")
		}
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxLoginAttempts <= 0 {
			return errors.New("Throttle MaxLoginAttempts must be > 0 when enabled")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
