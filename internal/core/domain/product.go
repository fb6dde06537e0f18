package domain

import "time"

// Product is a product record pushed to a provider
type Product struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	ExternalID string         `json:"external_id"`
	SKU        string         `json:"sku,omitempty"`
	Name       string         `json:"name,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	CreatedBy  string         `json:"created_by,omitempty"`
}

// ProductResult is what a provider adapter returns after creating a product
type ProductResult struct {
	ExternalID string         `json:"external_id"`
	Data       map[string]any `json:"data"`
}

// stringField returns data[key] when it holds a string
func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// NewProduct builds the local record for a product created at a provider.
func NewProduct(provider string, input map[string]any, res *ProductResult, user string, now time.Time) *Product {
	return &Product{
		ID:         GenerateID(),
		Provider:   provider,
		ExternalID: res.ExternalID,
		SKU:        stringField(input, "sku"),
		Name:       stringField(input, "name"),
		Data:       res.Data,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  user,
	}
}
