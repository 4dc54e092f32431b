// Package monitoring evaluates price alerts and exposes tracker metrics.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/config"
	"github.com/tmirko/flight-price-tracker/internal/model"
	"github.com/tmirko/flight-price-tracker/internal/report"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPriceDrop AlertType = "price_drop"
	AlertNewLow    AlertType = "new_low"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Route     string         `json:"route"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher delivers an encoded alert to a message stream.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Alerter compares a run's prices against history and delivers alerts via
// webhook and/or a Publisher.
type Alerter struct {
	cfg       config.AlertsConfig
	client    *http.Client
	publisher Publisher
}

// NewAlerter creates a new Alerter. publisher may be nil.
func NewAlerter(cfg config.AlertsConfig, publisher Publisher) *Alerter {
	return &Alerter{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		publisher: publisher,
	}
}

// Evaluate returns a price_drop alert for every date whose price fell by at
// least the configured percentage, and a new_low alert when the cheapest
// date is under the target price.
func (a *Alerter) Evaluate(route, currency string, rows []model.ReportRow, prev map[string]float64, now time.Time) []Alert {
	var alerts []Alert
	now = now.UTC()

	if a.cfg.DropThresholdPct > 0 {
		for _, r := range rows {
			p, ok := prev[r.OutboundDate]
			if !ok || p <= 0 {
				continue
			}
			dropPct := (p - r.CheapestPrice) / p * 100
			if dropPct < a.cfg.DropThresholdPct {
				continue
			}
			severity := "medium"
			if dropPct >= 2*a.cfg.DropThresholdPct {
				severity = "high"
			}
			alerts = append(alerts, Alert{
				Type:     AlertPriceDrop,
				Severity: severity,
				Route:    route,
				Message: fmt.Sprintf("%s %s: %s is %.1f%% below previous %s",
					route, r.OutboundDate,
					report.FormatMoney(r.CheapestPrice, currency), dropPct,
					report.FormatMoney(p, currency),
				),
				Details: map[string]any{
					"outbound_date":  r.OutboundDate,
					"price":          r.CheapestPrice,
					"previous_price": p,
					"drop_pct":       dropPct,
					"currency":       currency,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.TargetPrice > 0 {
		if best := report.TopDeals(rows, 1); len(best) == 1 && best[0].CheapestPrice < a.cfg.TargetPrice {
			alerts = append(alerts, Alert{
				Type:     AlertNewLow,
				Severity: "high",
				Route:    route,
				Message: fmt.Sprintf("%s %s: %s is under target %s",
					route, best[0].OutboundDate,
					report.FormatMoney(best[0].CheapestPrice, currency),
					report.FormatMoney(a.cfg.TargetPrice, currency),
				),
				Details: map[string]any{
					"outbound_date": best[0].OutboundDate,
					"price":         best[0].CheapestPrice,
					"target_price":  a.cfg.TargetPrice,
					"currency":      currency,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to every configured channel. Returns the number
// of alerts delivered to at least one channel.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 || (a.cfg.WebhookURL == "" && a.publisher == nil) {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		payload, err := json.Marshal(alert)
		if err != nil {
			zap.L().Error("monitoring: marshal alert", zap.Error(err))
			continue
		}

		delivered := false
		if a.cfg.WebhookURL != "" {
			if err := a.sendWebhook(ctx, payload); err != nil {
				zap.L().Error("monitoring: failed to send alert webhook",
					zap.String("type", string(alert.Type)),
					zap.Error(err),
				)
			} else {
				delivered = true
			}
		}
		if a.publisher != nil {
			if err := a.publisher.Publish(ctx, alert.Route, payload); err != nil {
				zap.L().Error("monitoring: failed to publish alert",
					zap.String("type", string(alert.Type)),
					zap.Error(err),
				)
			} else {
				delivered = true
			}
		}

		if delivered {
			zap.L().Info("monitoring: alert sent",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
			)
			sent++
		}
	}
	return sent
}

// sendWebhook posts a single encoded alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
