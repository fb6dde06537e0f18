package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/custodia-labs/syncbridge/internal/adapters/driven/integration"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Credentials is the per-provider environment block, read with a
// {PROVIDER}_ prefix (e.g. SHIPBOB_API_KEY).
type Credentials struct {
	APIKey            string `env:"API_KEY"`
	APISecret         string `env:"API_SECRET"`
	Sandbox           bool   `env:"SANDBOX"`
	Region            string `env:"REGION"`
	BaseURL           string `env:"BASE_URL"`
	WebhookSecret     string `env:"WEBHOOK_SECRET"`
	OAuthClientID     string `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"OAUTH_CLIENT_SECRET"`
	MaxRetries        *int   `env:"MAX_RETRIES"`
}

// LoadCredentials reads the credentials of every catalogue provider from
// environ. A nil environ reads the process environment.
func LoadCredentials(environ map[string]string) (map[string]Credentials, error) {
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	result := make(map[string]Credentials, len(Catalogue))
	for _, def := range Catalogue {
		var creds Credentials
		opts := env.Options{
			Prefix:      strings.ToUpper(def.Config.Name) + "_",
			Environment: environ,
		}
		if err := env.ParseWithOptions(&creds, opts); err != nil {
			return nil, fmt.Errorf("parse %s config: %w", def.Config.Name, err)
		}
		result[def.Config.Name] = creds
	}
	return result, nil
}

// RegistryConfig holds dependencies for Registry
type RegistryConfig struct {
	Credentials map[string]Credentials
	Connections driven.ConnectionStore
	Refresher   driven.TokenRefresher
	Webhooks    driven.WebhookSender
	Notifier    driven.Notifier
	Metrics     driven.MetricsRecorder
	Logger      *slog.Logger
	HTTPClient  *http.Client

	// AdminEmails receive payment failure alerts
	AdminEmails []string
}

var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry resolves provider adapters for tenants.
type Registry struct {
	cfg     RegistryConfig
	logger  *slog.Logger
	mu      sync.RWMutex
	configs map[string]*domain.ProviderConfig
	levels  map[string]integration.LevelFields
}

// NewRegistry builds the registry. Providers without an API key are omitted.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Registry{
		cfg:     cfg,
		logger:  cfg.Logger,
		configs: make(map[string]*domain.ProviderConfig),
		levels:  make(map[string]integration.LevelFields),
	}

	for _, def := range Catalogue {
		creds, ok := cfg.Credentials[def.Config.Name]
		if !ok || creds.APIKey == "" {
			r.logger.Debug("provider not configured, skipping", "provider", def.Config.Name)
			continue
		}
		r.Register(build(def, creds, cfg.AdminEmails), def.Levels)
	}
	return r
}

func build(def Definition, creds Credentials, admins []string) *domain.ProviderConfig {
	pc := def.Config
	pc.FieldMapping = make(map[string]string, len(def.Config.FieldMapping))
	for k, v := range def.Config.FieldMapping {
		pc.FieldMapping[k] = v
	}

	pc.APIKey = creds.APIKey
	pc.APISecret = creds.APISecret
	pc.Sandbox = creds.Sandbox
	pc.Region = creds.Region
	pc.WebhookSecret = creds.WebhookSecret
	pc.OAuthClientID = creds.OAuthClientID
	pc.OAuthClientSecret = creds.OAuthClientSecret
	pc.AdminEmails = admins
	if creds.MaxRetries != nil {
		pc.MaxRetries = *creds.MaxRetries
	}

	switch {
	case creds.BaseURL != "":
		pc.BaseURL = creds.BaseURL
	case creds.Sandbox && def.SandboxURL != "":
		pc.BaseURL = def.SandboxURL
	}
	pc.BaseURL = strings.ReplaceAll(pc.BaseURL, "{region}", creds.Region)
	return &pc
}

// Register adds or replaces a provider
func (r *Registry) Register(pc *domain.ProviderConfig, levels integration.LevelFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[pc.Name] = pc
	r.levels[pc.Name] = levels
	r.logger.Info("provider registered", "provider", pc.Name, "type", pc.IntegrationType, "sandbox", pc.Sandbox)
}

func (r *Registry) Config(provider string) (*domain.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pc, ok := r.configs[provider]
	return pc, ok
}

func (r *Registry) Providers() []domain.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]domain.ProviderInfo, 0, len(r.configs))
	for _, pc := range r.configs {
		infos = append(infos, pc.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Adapter binds provider to userID's connection. System callers, and
// tenants without a connection, use the platform credentials.
func (r *Registry) Adapter(ctx context.Context, provider, userID string) (driven.ProviderAdapter, error) {
	r.mu.RLock()
	pc, ok := r.configs[provider]
	levels := r.levels[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	var conn *domain.Connection
	if userID != "" && userID != domain.SystemUserID && r.cfg.Connections != nil {
		c, err := r.cfg.Connections.GetByProvider(ctx, userID, provider)
		switch {
		case err == nil:
			conn = c
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, fmt.Errorf("load connection: %w", err)
		}
	}
	if conn != nil && conn.Status == domain.ConnectionStatusDisabled {
		return nil, domain.NewConfigurationError(provider, "connection is disabled")
	}

	client := integration.NewClient(integration.ClientConfig{
		Provider:    pc,
		Connection:  conn,
		Connections: r.cfg.Connections,
		Refresher:   r.cfg.Refresher,
		Webhooks:    r.cfg.Webhooks,
		Notifier:    r.cfg.Notifier,
		Metrics:     r.cfg.Metrics,
		Logger:      r.logger,
		HTTPClient:  r.cfg.HTTPClient,
	})
	return integration.NewAdapter(client, levels), nil
}
