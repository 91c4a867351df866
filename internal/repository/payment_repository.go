package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
}
