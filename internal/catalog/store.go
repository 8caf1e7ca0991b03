package catalog

import (
	"context"
	"errors"
	"fmt"

	"pos-backend/internal/apperr"
	"pos-backend/internal/audit"
	"pos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityProduct = "product"

// Store owns products and their barcodes.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Resolved is a product together with the barcode that was used to find it,
// which is not necessarily its first barcode.
type Resolved struct {
	Product        models.Product
	ScannedBarcode string
}

func withBarcodes(db *gorm.DB) *gorm.DB {
	return db.Preload("Barcodes", func(db *gorm.DB) *gorm.DB {
		return db.Order("token asc")
	})
}

func ownerOf(tx *gorm.DB, token string) (uint, error) {
	var bc models.Barcode
	err := tx.Where("token = ?", token).Take(&bc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("barcode %q", token)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve barcode %q: %w", token, err)
	}
	return bc.ProductID, nil
}

func loadProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	err := withBarcodes(tx).Take(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &p, nil
}

func ensureFree(tx *gorm.DB, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	var taken []string
	if err := tx.Model(&models.Barcode{}).Where("token IN ?", tokens).Pluck("token", &taken).Error; err != nil {
		return fmt.Errorf("check barcodes: %w", err)
	}
	if len(taken) > 0 {
		return apperr.Conflict("barcode %q already exists", taken[0])
	}
	return nil
}

func insertBarcodes(tx *gorm.DB, productID uint, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	rows := make([]models.Barcode, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, models.Barcode{Token: t, ProductID: productID})
	}
	return tx.Create(&rows).Error
}

// ResolveByBarcode returns the product owning token.
func (s *Store) ResolveByBarcode(ctx context.Context, token string) (*Resolved, error) {
	t, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	id, err := ownerOf(db, t)
	if err != nil {
		return nil, err
	}
	p, err := loadProduct(db, id)
	if err != nil {
		return nil, err
	}
	return &Resolved{Product: *p, ScannedBarcode: t}, nil
}

// GetProduct returns a product with its barcodes.
func (s *Store) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return loadProduct(s.db.WithContext(ctx), id)
}

// CreateProduct inserts the product and all of its barcodes atomically.
func (s *Store) CreateProduct(ctx context.Context, fields ProductFields, barcodes []string) (uint, error) {
	fields.normalize()
	v := apperr.Violations{}
	fields.validate(v)
	tokens := normalizeTokens(barcodes, v)
	if err := v.Err(); err != nil {
		return 0, err
	}

	var p models.Product
	fields.apply(&p)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureFree(tx, tokens); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return err
		}
		if err := insertBarcodes(tx, p.ID, tokens); err != nil {
			return err
		}
		after := p
		after.Barcodes = nil
		return audit.Write(tx, audit.Entry{
			EntityType:  entityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("created %q with %d barcode(s)", p.Name, len(tokens)),
			After:       map[string]any{"product": after, "barcodes": tokens},
		})
	})
	if err != nil {
		return 0, apperr.FromStore("create product", err)
	}
	return p.ID, nil
}

// ListProducts returns every product, newest first, with its barcode set.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := withBarcodes(s.db.WithContext(ctx)).Order("id desc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// UpdateProduct overwrites the mutable fields of the product owning barcode.
func (s *Store) UpdateProduct(ctx context.Context, barcode string, fields ProductFields) (*models.Product, error) {
	t, err := normalizeToken(barcode)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, fields, func(tx *gorm.DB) (uint, error) { return ownerOf(tx, t) })
}

// UpdateProductByID overwrites the mutable fields of product id.
func (s *Store) UpdateProductByID(ctx context.Context, id uint, fields ProductFields) (*models.Product, error) {
	return s.update(ctx, fields, func(*gorm.DB) (uint, error) { return id, nil })
}

func (s *Store) update(ctx context.Context, fields ProductFields, resolve func(*gorm.DB) (uint, error)) (*models.Product, error) {
	fields.normalize()
	v := apperr.Violations{}
	fields.validate(v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var updated *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := resolve(tx)
		if err != nil {
			return err
		}
		p, err := loadProduct(tx, id)
		if err != nil {
			return err
		}
		before := *p
		fields.apply(p)
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return err
		}
		updated = p
		return audit.Write(tx, audit.Entry{
			EntityType:  entityProduct,
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("updated %q", p.Name),
			Before:      before,
			After:       *p,
		})
	})
	if err != nil {
		return nil, apperr.FromStore("update product", err)
	}
	return updated, nil
}

// DeleteProduct removes the product owning barcode and all of its barcodes.
// An unknown barcode is a no-op.
func (s *Store) DeleteProduct(ctx context.Context, barcode string) error {
	t, err := normalizeToken(barcode)
	if err != nil {
		return err
	}
	return s.delete(ctx, func(tx *gorm.DB) (uint, error) { return ownerOf(tx, t) })
}

// DeleteProductByID removes product id and all of its barcodes.
func (s *Store) DeleteProductByID(ctx context.Context, id uint) error {
	return s.delete(ctx, func(*gorm.DB) (uint, error) { return id, nil })
}

// The barcode rows are removed explicitly so the cascade holds even on a
// store running without foreign key enforcement. Deleting something that is
// already gone succeeds without writing anything.
func (s *Store) delete(ctx context.Context, resolve func(*gorm.DB) (uint, error)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := resolve(tx)
		if err != nil {
			return err
		}
		p, err := loadProduct(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Barcode{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.Entry{
			EntityType:  entityProduct,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("deleted %q with %d barcode(s)", p.Name, len(p.Barcodes)),
			Before:      *p,
		})
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return apperr.FromStore("delete product", err)
}

// AddBarcodes attaches new barcodes to an existing product, all or none.
func (s *Store) AddBarcodes(ctx context.Context, productID uint, barcodes []string) (*models.Product, error) {
	v := apperr.Violations{}
	tokens := normalizeTokens(barcodes, v)
	if len(barcodes) == 0 {
		v.Add("barcodes", "required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var updated *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProduct(tx, productID); err != nil {
			return err
		}
		if err := ensureFree(tx, tokens); err != nil {
			return err
		}
		if err := insertBarcodes(tx, productID, tokens); err != nil {
			return err
		}
		p, err := loadProduct(tx, productID)
		if err != nil {
			return err
		}
		updated = p
		return audit.Write(tx, audit.Entry{
			EntityType:  entityProduct,
			EntityID:    productID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("added %d barcode(s)", len(tokens)),
			After:       map[string]any{"barcodes": tokens},
		})
	})
	if err != nil {
		return nil, apperr.FromStore("add barcodes", err)
	}
	return updated, nil
}

// RemoveBarcode detaches a single barcode. The product itself is kept, even
// when this was its last barcode.
func (s *Store) RemoveBarcode(ctx context.Context, barcode string) error {
	t, err := normalizeToken(barcode)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := ownerOf(tx, t)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Barcode{}, "token = ?", t).Error; err != nil {
			return err
		}
		return audit.Write(tx, audit.Entry{
			EntityType:  entityProduct,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("removed barcode %q", t),
			Before:      map[string]any{"barcode": t},
		})
	})
	return apperr.FromStore("remove barcode", err)
}
