package worker

// Background goroutine that periodically scans for batches close to their
// expiration date and mails a digest to admin and subadmin users. Batches
// already reported are not deduplicated; the digest is a daily snapshot.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmatrack/internal/model"
	"pharmatrack/internal/notify"
	"pharmatrack/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	expiryCheckInterval = 24 * time.Hour
	expiryWindowDays    = 30
)

// ExpiryNotifierConfig holds the dependencies for the notifier goroutine.
type ExpiryNotifierConfig struct {
	BatchRepo repository.BatchRepository
	UserRepo  repository.UserRepository
	Mailer    *notify.Mailer
}

// StartExpiryNotifier launches a background goroutine that scans once at
// startup and then every 24h. It respects the context for graceful shutdown.
func StartExpiryNotifier(ctx context.Context, cfg ExpiryNotifierConfig) {
	go func() {
		ticker := time.NewTicker(expiryCheckInterval)
		defer ticker.Stop()

		log.Info().Msg("expiry_notifier: started")

		checkExpiringBatches(ctx, cfg)
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_notifier: shutting down")
				return
			case <-ticker.C:
				checkExpiringBatches(ctx, cfg)
			}
		}
	}()
}

func checkExpiringBatches(ctx context.Context, cfg ExpiryNotifierConfig) {
	batches, err := cfg.BatchRepo.ExpiringWithin(ctx, expiryWindowDays)
	if err != nil {
		log.Error().Err(err).Msg("expiry_notifier: failed to query expiring batches")
		return
	}

	if len(batches) == 0 {
		return
	}

	log.Info().Int("count", len(batches)).Msg("expiry_notifier: batches expiring soon")

	if cfg.Mailer == nil {
		log.Debug().Msg("expiry_notifier: mail disabled, skipping digest")
		return
	}

	users, err := cfg.UserRepo.ListByRoles(ctx, model.RoleAdmin, model.RoleSubAdmin)
	if err != nil {
		log.Error().Err(err).Msg("expiry_notifier: failed to query recipients")
		return
	}

	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			recipients = append(recipients, u.Email)
		}
	}
	if len(recipients) == 0 {
		log.Warn().Msg("expiry_notifier: no recipients, skipping digest")
		return
	}

	subject := fmt.Sprintf("Expiry alert: %d batch(es) expiring within %d days", len(batches), expiryWindowDays)
	body := buildDigest(batches)

	if err := cfg.Mailer.Send(recipients, subject, body); err != nil {
		log.Error().Err(err).Int("recipients", len(recipients)).Msg("expiry_notifier: failed to send digest")
		return
	}

	log.Info().Int("recipients", len(recipients)).Msg("expiry_notifier: digest sent")
}

func buildDigest(batches []model.Batch) string {
	var b strings.Builder
	b.WriteString("The following batches expire soon:\n\n")
	for i := range batches {
		batch := &batches[i]
		name := batch.MedicineID.String()
		if batch.Medicine != nil {
			name = batch.Medicine.Name
		}
		fmt.Fprintf(&b, "- %s, batch %s: %d units, expires %s (%d days)\n",
			name,
			batch.BatchNumber,
			batch.Quantity,
			batch.ExpirationDate.Format("2006-01-02"),
			batch.DaysUntilExpiration(),
		)
	}
	b.WriteString("\nDispense or discard the affected stock before the deadline.\n")
	return b.String()
}
