// Package notify delivers signal batches over Telegram and Discord. Each
// batch is rendered once and dispatched to every configured sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/grifflabs/marketpulse/internal/domain"
)

// Sender is the interface each notification channel must implement. The
// recipient is an opaque identity; for Telegram it is a chat ID, for a
// webhook channel it may be ignored.
type Sender interface {
	Send(ctx context.Context, recipientID, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier fans one recipient's batch out to all senders. A batch counts as
// delivered when at least one channel accepted it; only total failure
// surfaces as an error, so the caller's ledger never marks a batch nobody
// received.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Deliver renders the batch and sends it to every channel.
func (n *Notifier) Deliver(ctx context.Context, batch domain.DeliveryBatch) error {
	if len(n.senders) == 0 {
		return fmt.Errorf("notify: no senders configured")
	}

	title, message := FormatBatch(batch)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, batch.RecipientID, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("recipient", batch.RecipientID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "batch sent",
			slog.String("sender", s.Name()),
			slog.String("recipient", batch.RecipientID),
			slog.String("family", string(batch.Family)),
			slog.Int("signals", len(batch.Signals)),
		)
	}

	if len(errs) == len(n.senders) {
		return fmt.Errorf("notify: all senders failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
