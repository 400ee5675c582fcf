package notifications

import (
	"context"

	"github.com/todaytrend/trend-dashboard/internal/models"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendDigest(ctx context.Context, digest *models.Digest) error
}
