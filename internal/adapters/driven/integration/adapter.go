package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Reserved mapping keys read by Adapter
const (
	ItemsKey = "items"
	IDKey    = "id"
)

// LevelFields names the gjson paths of one inventory entry
type LevelFields struct {
	SKU       string
	Quantity  string
	Warehouse string
	Location  string
	Updated   string
}

// DefaultLevelFields reads flat {sku, quantity, warehouse_id, location, updated_at} entries
var DefaultLevelFields = LevelFields{
	SKU:       "sku",
	Quantity:  "quantity",
	Warehouse: "warehouse_id",
	Location:  "location",
	Updated:   "updated_at",
}

var _ driven.ProviderAdapter = (*Adapter)(nil)

// Adapter implements ProviderAdapter on top of a Client.
type Adapter struct {
	client *Client
	fields LevelFields
}

// NewAdapter creates an adapter. Empty fields fall back to DefaultLevelFields.
func NewAdapter(client *Client, fields LevelFields) *Adapter {
	if fields.SKU == "" {
		fields.SKU = DefaultLevelFields.SKU
	}
	if fields.Quantity == "" {
		fields.Quantity = DefaultLevelFields.Quantity
	}
	if fields.Warehouse == "" {
		fields.Warehouse = DefaultLevelFields.Warehouse
	}
	if fields.Location == "" {
		fields.Location = DefaultLevelFields.Location
	}
	if fields.Updated == "" {
		fields.Updated = DefaultLevelFields.Updated
	}
	return &Adapter{client: client, fields: fields}
}

func (a *Adapter) Name() string                   { return a.client.cfg.Name }
func (a *Adapter) Config() *domain.ProviderConfig { return a.client.cfg }

// GetInventoryLevels reads the inventory endpoint. The mapped "items" key, or
// the whole body when it is an array, holds the entries.
func (a *Adapter) GetInventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error) {
	endpoint := a.client.cfg.Endpoints.Inventory
	if endpoint == "" {
		return nil, domain.NewConfigurationError(a.Name(), "inventory endpoint not configured")
	}

	resp, err := a.client.CallAPI(ctx, Request{Endpoint: endpoint, Method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	items := resp.Data
	if m, ok := resp.Data.(map[string]any); ok {
		items = m[ItemsKey]
	}
	if _, ok := items.([]any); !ok {
		return nil, &domain.IntegrationError{
			Code:       domain.CodeInvalidResponse,
			Provider:   a.Name(),
			StatusCode: resp.StatusCode,
			Message:    "inventory response has no item list",
		}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode inventory items: %w", err)
	}

	now := a.client.now()
	var levels []domain.InventoryLevel
	gjson.ParseBytes(raw).ForEach(func(_, entry gjson.Result) bool {
		sku := entry.Get(a.fields.SKU).String()
		if sku == "" {
			return true
		}
		level := domain.InventoryLevel{
			SKU:         sku,
			Quantity:    int(entry.Get(a.fields.Quantity).Int()),
			WarehouseID: stringOf(entry.Get(a.fields.Warehouse)),
			Location:    entry.Get(a.fields.Location).String(),
			LastUpdated: now,
		}
		if ts := entry.Get(a.fields.Updated); ts.Exists() {
			if t, err := time.Parse(time.RFC3339, ts.String()); err == nil {
				level.LastUpdated = t
			}
		}
		levels = append(levels, level)
		return true
	})
	return levels, nil
}

// CreateProduct posts data to the products endpoint and forwards the result
// to the tenant webhook as "product created".
func (a *Adapter) CreateProduct(ctx context.Context, data map[string]any) (*domain.ProductResult, error) {
	endpoint := a.client.cfg.Endpoints.Products
	if endpoint == "" {
		return nil, domain.NewConfigurationError(a.Name(), "products endpoint not configured")
	}

	resp, err := a.client.CallAPI(ctx, Request{
		Endpoint:     endpoint,
		Method:       http.MethodPost,
		Body:         data,
		WebhookEvent: domain.EventProductCreated,
	})
	if err != nil {
		return nil, err
	}

	mapped, _ := resp.Data.(map[string]any)
	id := ""
	if mapped != nil {
		id = idString(mapped[IDKey])
	}
	if id == "" {
		return nil, &domain.IntegrationError{
			Code:       domain.CodeMissingID,
			Provider:   a.Name(),
			StatusCode: resp.StatusCode,
			Message:    "provider did not return a product id",
		}
	}
	return &domain.ProductResult{ExternalID: id, Data: mapped}, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	}
	return ""
}

// stringOf renders numeric warehouse ids without a fractional part
func stringOf(r gjson.Result) string {
	if !r.Exists() {
		return ""
	}
	if r.Type == gjson.Number {
		return r.Raw
	}
	return r.String()
}
