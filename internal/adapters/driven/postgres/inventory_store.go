package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

var _ driven.InventoryStore = (*InventoryStore)(nil)

// InventoryStore implements driven.InventoryStore using PostgreSQL.
// Updates are optimistic on the version column.
type InventoryStore struct {
	db *DB
}

// NewInventoryStore creates a new InventoryStore
func NewInventoryStore(db *DB) *InventoryStore {
	return &InventoryStore{db: db}
}

const inventoryColumns = `sku, product_id, quantity, reserved_quantity, available_quantity, warehouse_id,
	provider, last_synced_at, thresholds, metadata, adjustments, updated_at, version`

func scanItem(row scanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var lastSynced sql.NullTime
	var thresholds, metadata, adjustments []byte

	if err := row.Scan(
		&item.SKU,
		&item.ProductID,
		&item.Quantity,
		&item.ReservedQuantity,
		&item.AvailableQuantity,
		&item.WarehouseID,
		&item.Provider,
		&lastSynced,
		&thresholds,
		&metadata,
		&adjustments,
		&item.UpdatedAt,
		&item.Version,
	); err != nil {
		return nil, err
	}

	if err := fromJSON(thresholds, &item.Thresholds); err != nil {
		return nil, err
	}
	if err := fromJSON(metadata, &item.Metadata); err != nil {
		return nil, err
	}
	if err := fromJSON(adjustments, &item.Adjustments); err != nil {
		return nil, err
	}
	item.LastSyncedAt = TimePtr(lastSynced)
	return &item, nil
}

// itemArgs returns the column values of item in inventoryColumns order, minus version
func itemArgs(item *domain.InventoryItem) ([]any, error) {
	thresholds, err := toJSON(item.Thresholds)
	if err != nil {
		return nil, err
	}
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := toJSON(metadata)
	if err != nil {
		return nil, err
	}
	adjustments := item.Adjustments
	if adjustments == nil {
		adjustments = []domain.Adjustment{}
	}
	adj, err := toJSON(adjustments)
	if err != nil {
		return nil, err
	}
	return []any{
		item.SKU,
		item.ProductID,
		item.Quantity,
		item.ReservedQuantity,
		item.AvailableQuantity,
		item.WarehouseID,
		item.Provider,
		NullTime(item.LastSyncedAt),
		thresholds,
		meta,
		adj,
		item.UpdatedAt,
	}, nil
}

func (s *InventoryStore) Get(ctx context.Context, sku string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE sku = $1`, sku)
	item, err := scanItem(row)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return item, nil
}

func (s *InventoryStore) GetMany(ctx context.Context, skus []string) (map[string]*domain.InventoryItem, error) {
	result := make(map[string]*domain.InventoryItem, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items WHERE sku = ANY($1)`, pq.Array(skus))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.SKU] = item
	}
	return result, rows.Err()
}

func (s *InventoryStore) List(ctx context.Context, provider string) ([]*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items`
	var args []any
	if provider != "" {
		query += ` WHERE provider = $1`
		args = append(args, provider)
	}
	query += ` ORDER BY sku`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// Save upserts item unconditionally and bumps its version
func (s *InventoryStore) Save(ctx context.Context, item *domain.InventoryItem) error {
	args, err := itemArgs(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO inventory_items (` + inventoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		ON CONFLICT (sku) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			quantity = EXCLUDED.quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			available_quantity = EXCLUDED.available_quantity,
			warehouse_id = EXCLUDED.warehouse_id,
			provider = EXCLUDED.provider,
			last_synced_at = EXCLUDED.last_synced_at,
			thresholds = EXCLUDED.thresholds,
			metadata = EXCLUDED.metadata,
			adjustments = EXCLUDED.adjustments,
			updated_at = EXCLUDED.updated_at,
			version = inventory_items.version + 1
		RETURNING version
	`
	return s.db.QueryRowContext(ctx, query, args...).Scan(&item.Version)
}

// Update writes item only if the stored version still matches
func (s *InventoryStore) Update(ctx context.Context, item *domain.InventoryItem) error {
	args, err := itemArgs(item)
	if err != nil {
		return err
	}
	args = append(args, item.Version)

	query := `
		UPDATE inventory_items SET
			product_id = $2,
			quantity = $3,
			reserved_quantity = $4,
			available_quantity = $5,
			warehouse_id = $6,
			provider = $7,
			last_synced_at = $8,
			thresholds = $9,
			metadata = $10,
			adjustments = $11,
			updated_at = $12,
			version = version + 1
		WHERE sku = $1 AND version = $13
		RETURNING version
	`
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&item.Version)
	if err == sql.ErrNoRows {
		if _, getErr := s.Get(ctx, item.SKU); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: sku %s was modified concurrently", domain.ErrConflict, item.SKU)
	}
	return err
}

var _ driven.ProductStore = (*ProductStore)(nil)

// ProductStore implements driven.ProductStore using PostgreSQL
type ProductStore struct {
	db *DB
}

// NewProductStore creates a new ProductStore
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// Upsert keeps the first local id for a (provider, external_id) pair
func (s *ProductStore) Upsert(ctx context.Context, p *domain.Product) error {
	data, err := toJSON(p.Data)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO products (id, provider, external_id, sku, name, data, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, external_id) DO UPDATE SET
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	return s.db.QueryRowContext(ctx, query,
		p.ID, p.Provider, p.ExternalID, p.SKU, p.Name, data, p.CreatedAt, p.UpdatedAt, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *ProductStore) List(ctx context.Context, provider string) ([]*domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, external_id, sku, name, data, created_at, updated_at, created_by
		FROM products
		WHERE provider = $1
		ORDER BY created_at DESC
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Product
	for rows.Next() {
		var p domain.Product
		var data []byte
		if err := rows.Scan(&p.ID, &p.Provider, &p.ExternalID, &p.SKU, &p.Name, &data,
			&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		if err := fromJSON(data, &p.Data); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
