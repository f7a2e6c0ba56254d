package wallet

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  point_balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, balance int64) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", Name: "buyer", PointBalance: balance}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestDeductSpendsPoints(t *testing.T) {
	db := setupWalletTestDB(t)
	w := NewPointWallet()
	user := seedUser(t, db, 5000)

	require.NoError(t, w.Deduct(db, user, 1500))
	assert.Equal(t, int64(3500), user.PointBalance)

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, int64(3500), stored.PointBalance)
}

func TestDeductZeroIsNoOp(t *testing.T) {
	db := setupWalletTestDB(t)
	w := NewPointWallet()
	user := seedUser(t, db, 2000)

	require.NoError(t, w.Deduct(db, user, 0))
	assert.Equal(t, int64(2000), user.PointBalance)
}

func TestDeductRejectsInsufficientBalance(t *testing.T) {
	db := setupWalletTestDB(t)
	w := NewPointWallet()
	user := seedUser(t, db, 100)

	err := w.Deduct(db, user, 500)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeConflict, typed.Code())

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, int64(100), stored.PointBalance)
}

func TestDeductRejectsNegativePoints(t *testing.T) {
	db := setupWalletTestDB(t)
	w := NewPointWallet()
	user := seedUser(t, db, 100)

	err := w.Deduct(db, user, -1)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())
}

func TestRefundRestoresBalance(t *testing.T) {
	db := setupWalletTestDB(t)
	w := NewPointWallet()
	user := seedUser(t, db, 5000)

	require.NoError(t, w.Deduct(db, user, 3000))
	require.NoError(t, w.Refund(db, user, 3000))

	var stored models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, int64(5000), stored.PointBalance)
}
