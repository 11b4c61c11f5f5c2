package notify

import (
	"context"
	"log/slog"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// AlertChannel is the signal bus channel carrying alert envelopes.
const AlertChannel = "alerts"

// AlertDispatcher implements domain.AlertSink. Each alert is published on the
// signal bus (when one is configured) and rendered to every allowed sender.
// Delivery failures are logged and never returned to the caller.
type AlertDispatcher struct {
	notifier *Notifier
	bus      domain.SignalBus
	siteURL  string
	logger   *slog.Logger
}

// NewAlertDispatcher creates an AlertDispatcher. bus may be nil.
func NewAlertDispatcher(notifier *Notifier, bus domain.SignalBus, siteURL string, logger *slog.Logger) *AlertDispatcher {
	return &AlertDispatcher{
		notifier: notifier,
		bus:      bus,
		siteURL:  siteURL,
		logger:   logger.With(slog.String("component", "alert_dispatcher")),
	}
}

// Dispatch delivers alert on a best-effort basis.
func (d *AlertDispatcher) Dispatch(ctx context.Context, alert domain.Alert) {
	home, away := alert.Match()
	log := d.logger.With(
		slog.String("kind", string(alert.Kind())),
		slog.String("match", home+" x "+away),
	)

	if d.bus != nil {
		if payload, err := domain.MarshalAlert(alert); err != nil {
			log.ErrorContext(ctx, "encode alert failed", slog.String("error", err.Error()))
		} else if err := d.bus.Publish(ctx, AlertChannel, payload); err != nil {
			log.WarnContext(ctx, "publish alert failed", slog.String("error", err.Error()))
		}
	}

	if d.notifier == nil || !d.notifier.Allows(string(alert.Kind())) {
		return
	}
	msg := Render(alert, d.siteURL)
	if err := d.notifier.Notify(ctx, msg); err != nil {
		log.ErrorContext(ctx, "alert delivery failed", slog.String("error", err.Error()))
		return
	}
	log.InfoContext(ctx, "alert dispatched", slog.String("body", msg.Body))
}

// Compile-time interface check.
var _ domain.AlertSink = (*AlertDispatcher)(nil)
