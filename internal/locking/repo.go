package locking

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// Repository acquires exclusive row locks for the purchase path. Every call
// site that touches both a user and products must lock the user first, then
// the products in ascending id order, so concurrent purchases can never form
// a lock cycle.
type Repository struct{}

// NewRepository builds the lock repository.
func NewRepository() *Repository {
	return &Repository{}
}

// LockUser blocks until an exclusive lock on the user row is granted.
func (r *Repository) LockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// LockProducts locks the given product rows in ascending id order and returns
// them keyed by id. Missing products surface as NotFound.
func (r *Repository) LockProducts(tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(productIDs) == 0 {
		return map[uuid.UUID]*models.Product{}, nil
	}

	ordered := SortIDs(productIDs)

	locked := make(map[uuid.UUID]*models.Product, len(ordered))
	for _, id := range ordered {
		var product models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.New(apperrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": id.String()})
			}
			return nil, err
		}
		locked[product.ID] = &product
	}
	return locked, nil
}

// SortIDs returns a copy of ids sorted ascending by their string form. The
// ordering itself is arbitrary; what matters is that it is total and every
// caller uses the same one.
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})
	return ordered
}
