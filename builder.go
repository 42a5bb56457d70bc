package adminAuth

import (
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/adminAuth/internal/audit"
	"github.com/MrEthical07/adminAuth/internal/rate"
	"github.com/MrEthical07/adminAuth/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a Service. Backends are selected once, in Build, from the
// configuration and whatever was supplied with the With* methods.
//
// A Builder may be used for a single Build.
type Builder struct {
	config Config
	store  storage.Store
	redis  redis.UniversalClient

	creds    CredentialBackend
	sessions SessionBackend

	remoteAuth RemoteAuthClient
	remoteDir  RemoteDirectory

	auditSink AuditSink
	logger    *zerolog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage supplies the key-value resource directly, overriding Storage.Driver.
func (b *Builder) WithStorage(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis storage driver and the login
// throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialBackend replaces the backend that Backend.Mode would select.
func (b *Builder) WithCredentialBackend(creds CredentialBackend) *Builder {
	b.creds = creds
	return b
}

// WithSessionBackend replaces the backend that Backend.Mode would select.
func (b *Builder) WithSessionBackend(sessions SessionBackend) *Builder {
	b.sessions = sessions
	return b
}

// WithRemote supplies the remote service used when Backend.Mode is BackendRemote.
func (b *Builder) WithRemote(auth RemoteAuthClient, dir RemoteDirectory) *Builder {
	b.remoteAuth = auth
	b.remoteDir = dir
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Service. The Service still needs
// Start before use.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}
	logger = logger.With().Str("component", "adminauth").Logger()

	creds, sessions := b.creds, b.sessions
	if creds == nil || sessions == nil {
		kv, err := b.openStorage(cfg)
		if err != nil {
			return nil, err
		}

		switch cfg.Backend.Mode {
		case BackendLocal:
			if creds == nil {
				local, err := NewLocalCredentialStore(kv, cfg, WithCredentialLogger(logger))
				if err != nil {
					return nil, err
				}
				creds = local
			}
			if sessions == nil {
				local, err := NewLocalSessionManager(kv, cfg.Storage.SessionKey)
				if err != nil {
					return nil, err
				}
				sessions = local
			}
		case BackendRemote:
			if b.remoteAuth == nil || b.remoteDir == nil {
				return nil, errors.New("remote backend requires WithRemote")
			}
			if creds == nil {
				remote, err := NewRemoteCredentials(b.remoteAuth, b.remoteDir)
				if err != nil {
					return nil, err
				}
				creds = remote
			}
			if sessions == nil {
				remote, err := NewRemoteSessions(b.remoteAuth, kv, cfg.Storage.SessionKey)
				if err != nil {
					return nil, err
				}
				sessions = remote
			}
		}
	}

	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		if b.redis == nil {
			return nil, errors.New("login throttle requires WithRedis")
		}
		throttle = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Throttle.MaxLoginAttempts,
			Window:      cfg.Throttle.Cooldown,
			PerIP:       cfg.Throttle.PerIP,
			Prefix:      cfg.Throttle.KeyPrefix,
		})
	}

	svc := &Service{
		cfg:      cfg,
		creds:    creds,
		sessions: sessions,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		throttle: throttle,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	for _, w := range cfg.Lint() {
		if w.Severity >= LintWarn {
			logger.Warn().Str("code", w.Code).Msg(w.Message)
		}
	}

	b.built = true
	return svc, nil
}

func (b *Builder) openStorage(cfg Config) (storage.Store, error) {
	if b.store != nil {
		return b.store, nil
	}

	switch cfg.Storage.Driver {
	case StorageMemory:
		return storage.NewMemory(), nil
	case StorageFile:
		return storage.NewFile(cfg.Storage.FilePath)
	case StorageRedis:
		if b.redis == nil {
			return nil, errors.New("redis storage requires WithRedis")
		}
		return storage.NewRedis(b.redis, cfg.Storage.RedisPrefix)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
