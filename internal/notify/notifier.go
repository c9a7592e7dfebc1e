// Package notify delivers spike alerts to external messaging channels.
// Alerts are dispatched to all registered senders (Telegram, Discord) and
// can be filtered by tier so operators receive only the severities they
// care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches rendered alerts to one or more Senders. When a tier
// filter is configured, only alerts of those tiers are forwarded.
type Notifier struct {
	senders []Sender
	tiers   map[domain.Tier]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders. If tiers is empty,
// all tiers pass the filter.
func New(senders []Sender, tiers []domain.Tier, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.Tier]bool, len(tiers))
	for _, t := range tiers {
		allowed[t] = true
	}
	return &Notifier{
		senders: senders,
		tiers:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Deliver renders the alert and sends it to every configured channel.
// Errors from individual senders are collected and returned combined; a
// single sender failure does not prevent delivery to the rest.
func (n *Notifier) Deliver(ctx context.Context, alert domain.Alert) error {
	if len(n.tiers) > 0 && !n.tiers[alert.Tier] {
		n.logger.DebugContext(ctx, "alert tier filtered out",
			slog.String("tier", string(alert.Tier)),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	title, message := Render(alert)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("alert_id", alert.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}
