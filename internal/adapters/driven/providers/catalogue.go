package providers

import (
	"time"

	"github.com/custodia-labs/syncbridge/internal/adapters/driven/integration"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Definition is a built-in provider: its static config template and how
// inventory entries are read from its responses.
type Definition struct {
	Config     domain.ProviderConfig
	SandboxURL string
	Levels     integration.LevelFields
}

// Catalogue lists the providers known to the registry
var Catalogue = []Definition{
	{
		Config: domain.ProviderConfig{
			Name:            "shipbob",
			IntegrationType: domain.IntegrationWarehouse,
			BaseURL:         "https://api.shipbob.com/1.0",
			AuthType:        domain.AuthTypeAPIKey,
			TokenURL:        "https://auth.shipbob.com/connect/token",
			Endpoints: domain.ProviderEndpoints{
				Inventory: "/inventory",
				Products:  "/product",
			},
			FieldMapping: map[string]string{
				integration.ItemsKey: "@this",
				integration.IDKey:    "id",
				"name":               "name",
				"reference_id":       "reference_id",
			},
			MaxRetries:   3,
			InitialDelay: time.Second,
		},
		SandboxURL: "https://sandbox-api.shipbob.com/1.0",
		Levels: integration.LevelFields{
			SKU:       "sku",
			Quantity:  "total_fulfillable_quantity",
			Warehouse: "fulfillable_quantity_by_fulfillment_center.0.id",
			Location:  "fulfillable_quantity_by_fulfillment_center.0.name",
		},
	},
	{
		Config: domain.ProviderConfig{
			Name:            "shipstation",
			IntegrationType: domain.IntegrationWarehouse,
			BaseURL:         "https://ssapi.shipstation.com",
			AuthType:        domain.AuthTypeBasic,
			Endpoints: domain.ProviderEndpoints{
				Inventory: "/inventory",
				Products:  "/products",
			},
			FieldMapping: map[string]string{
				integration.ItemsKey: "inventory",
				integration.IDKey:    "productId",
				"sku":                "sku",
			},
			MaxRetries:   3,
			InitialDelay: 2 * time.Second,
		},
		Levels: integration.LevelFields{
			SKU:       "sku",
			Quantity:  "available",
			Warehouse: "warehouseId",
			Updated:   "modifyDate",
		},
	},
	{
		Config: domain.ProviderConfig{
			Name:            "shopify",
			IntegrationType: domain.IntegrationMarketplace,
			BaseURL:         "https://{region}.myshopify.com/admin/api/2024-10",
			AuthType:        domain.AuthTypeAPIKey,
			APIKeyHeader:    "X-Shopify-Access-Token",
			Endpoints: domain.ProviderEndpoints{
				Inventory: "/inventory_levels.json",
				Products:  "/products.json",
			},
			FieldMapping: map[string]string{
				integration.ItemsKey: "inventory_levels",
				integration.IDKey:    "product.id",
				"title":              "product.title",
				"handle":             "product.handle",
			},
			MaxRetries:   3,
			InitialDelay: time.Second,
		},
		Levels: integration.LevelFields{
			SKU:       "sku",
			Quantity:  "available",
			Warehouse: "location_id",
			Updated:   "updated_at",
		},
	},
	{
		Config: domain.ProviderConfig{
			Name:            "stripe",
			IntegrationType: domain.IntegrationPayment,
			BaseURL:         "https://api.stripe.com/v1",
			AuthType:        domain.AuthTypeAPIKey,
			Endpoints: domain.ProviderEndpoints{
				Products: "/products",
			},
			FieldMapping: map[string]string{
				integration.IDKey: "id",
				"name":            "name",
				"active":          "active",
			},
			MaxRetries:   2,
			InitialDelay: time.Second,
		},
	},
}
