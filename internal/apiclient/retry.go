package apiclient

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/models"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 4,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
	}
}

// RetrainWithRetry retries the retrain call with exponential backoff. A
// retrain that the server skipped (guard not met) counts as success.
func (c *Client) RetrainWithRetry(ctx context.Context, space string, force bool) (*models.RetrainReport, error) {
	var report *models.RetrainReport
	err := c.retryOperation(ctx, fmt.Sprintf("retrain %s", space), func() error {
		var opErr error
		report, opErr = c.Retrain(space, force)
		return opErr
	})
	return report, err
}

func (c *Client) retryOperation(ctx context.Context, name string, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retry.BaseDelay) * math.Pow(1.5, float64(attempt-1)))
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}

			c.logger.WithFields(logrus.Fields{
				"operation": name,
				"attempt":   attempt,
				"delay":     delay,
			}).Warn("Retrying API operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = operation(); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, c.retry.MaxRetries+1, lastErr)
}
