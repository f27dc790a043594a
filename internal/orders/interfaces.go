package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByToken(ctx context.Context, token string) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]ItemView, error)
	FindSellers(ctx context.Context, ids []uuid.UUID) ([]models.Seller, error)
	FindAwaitingPayment(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (bool, error)
	BackfillPaymentID(ctx context.Context, orderID uuid.UUID, paymentID string) (bool, error)
}
