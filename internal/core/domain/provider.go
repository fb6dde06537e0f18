package domain

import "time"

// IntegrationType groups providers by what they are used for
type IntegrationType string

const (
	IntegrationWarehouse   IntegrationType = "warehouse"
	IntegrationMarketplace IntegrationType = "marketplace"
	IntegrationPayment     IntegrationType = "payment"
	IntegrationAnalytics   IntegrationType = "analytics"
)

// AuthType is the authentication scheme used against a provider API
type AuthType string

const (
	AuthTypeOAuth  AuthType = "oauth"
	AuthTypeAPIKey AuthType = "apikey"
	AuthTypeBasic  AuthType = "basic"
)

// ProviderEndpoints are paths relative to BaseURL
type ProviderEndpoints struct {
	Inventory string `json:"inventory"`
	Products  string `json:"products"`
}

// Default retry settings for provider calls
const (
	DefaultProviderMaxRetries   = 3
	DefaultProviderInitialDelay = time.Second
)

// ProviderConfig is the static configuration of one external provider.
type ProviderConfig struct {
	Name            string            `json:"name"`
	IntegrationType IntegrationType   `json:"integration_type"`
	BaseURL         string            `json:"base_url"`
	AuthType        AuthType          `json:"auth_type"`
	APIKeyHeader    string            `json:"api_key_header,omitempty"` // empty means Authorization: Bearer
	APIKey          string            `json:"-"`
	APISecret       string            `json:"-"`
	Endpoints       ProviderEndpoints `json:"endpoints"`

	// OAuth refresh settings
	TokenURL          string `json:"token_url,omitempty"`
	OAuthClientID     string `json:"-"`
	OAuthClientSecret string `json:"-"`

	// FieldMapping maps output keys to dotted paths into the response body.
	// An empty mapping passes the raw response through.
	FieldMapping map[string]string `json:"field_mapping,omitempty"`

	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	WebhookSecret string        `json:"-"`
	Sandbox       bool          `json:"sandbox"`
	Region        string        `json:"region,omitempty"`
	AdminEmails   []string      `json:"-"`
}

// RetryPolicy returns MaxRetries and InitialDelay with defaults applied.
func (p *ProviderConfig) RetryPolicy() (int, time.Duration) {
	maxRetries, delay := p.MaxRetries, p.InitialDelay
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay <= 0 {
		delay = DefaultProviderInitialDelay
	}
	return maxRetries, delay
}

// ProviderInfo is the public view of a configured provider
type ProviderInfo struct {
	Name            string          `json:"name"`
	IntegrationType IntegrationType `json:"integration_type"`
	AuthType        AuthType        `json:"auth_type"`
	Sandbox         bool            `json:"sandbox"`
	Region          string          `json:"region,omitempty"`
}

// Info returns the public view of the provider
func (p *ProviderConfig) Info() ProviderInfo {
	return ProviderInfo{
		Name:            p.Name,
		IntegrationType: p.IntegrationType,
		AuthType:        p.AuthType,
		Sandbox:         p.Sandbox,
		Region:          p.Region,
	}
}
