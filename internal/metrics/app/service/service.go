// Package service implements the aggregation engine: revenue projection,
// churn aggregation, and calendar highlighting over billing provider records.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/revlens/revlens/internal/metrics/domain/model"
)

// BillingClient defines the billing provider operations the aggregators
// consume. The provider is a black box behind this interface.
type BillingClient interface {
	// ListSubscriptions returns up to limit subscriptions with the given
	// status. No pagination: larger datasets are truncated.
	ListSubscriptions(ctx context.Context, apiKey string, status model.SubscriptionStatus, limit int) ([]model.Subscription, error)

	// ValidateKey reports whether the credential is authorized.
	ValidateKey(ctx context.Context, apiKey string) error
}

// keyFingerprint derives a cache-safe fingerprint from an API key so cached
// metrics are never shared across credentials and the key itself is never
// written to Redis.
func keyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}
