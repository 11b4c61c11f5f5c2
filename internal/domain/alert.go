package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind discriminates the Alert variants. The values double as the event
// names used for notification filtering.
type AlertKind string

const (
	AlertSurebetDetected AlertKind = "surebet_detected"
	AlertDroppingOdds    AlertKind = "dropping_odds"
)

// Alert is the closed set of events the signal detector emits. The only
// implementations are SurebetDetected and DroppingOdds.
type Alert interface {
	Kind() AlertKind
	Match() (home, away string)
	OccurredAt() time.Time
	sealed()
}

// SurebetDetected is emitted on the first detection of a surebet for a match.
type SurebetDetected struct {
	MatchID       string          `json:"match_id"`
	HomeTeam      string          `json:"home_team"`
	AwayTeam      string          `json:"away_team"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	DetectedAt    time.Time       `json:"detected_at"`
}

func (SurebetDetected) Kind() AlertKind { return AlertSurebetDetected }
func (a SurebetDetected) Match() (string, string) { return a.HomeTeam, a.AwayTeam }
func (a SurebetDetected) OccurredAt() time.Time { return a.DetectedAt }
func (SurebetDetected) sealed() {}

// DroppingOdds is emitted when a single odd falls past the notify threshold.
type DroppingOdds struct {
	MatchID     string          `json:"match_id"`
	HomeTeam    string          `json:"home_team"`
	AwayTeam    string          `json:"away_team"`
	Selection   Selection       `json:"selection"`
	Previous    decimal.Decimal `json:"previous"`
	Current     decimal.Decimal `json:"current"`
	DropPercent decimal.Decimal `json:"drop_percent"`
	Bookmaker   string          `json:"bookmaker"`
	DetectedAt  time.Time       `json:"detected_at"`
}

func (DroppingOdds) Kind() AlertKind { return AlertDroppingOdds }
func (a DroppingOdds) Match() (string, string) { return a.HomeTeam, a.AwayTeam }
func (a DroppingOdds) OccurredAt() time.Time { return a.DetectedAt }
func (DroppingOdds) sealed() {}

// SelectionLabel returns the human label of the dropped selection: the team
// name for Home/Away and "Empate" for the draw.
func (a DroppingOdds) SelectionLabel() string {
	switch a.Selection {
	case SelectionHome:
		return a.HomeTeam
	case SelectionAway:
		return a.AwayTeam
	case SelectionDraw:
		return "Empate"
	default:
		return string(a.Selection)
	}
}

// AlertSink receives detector alerts. Delivery is best effort; implementations
// log their own failures.
type AlertSink interface {
	Dispatch(ctx context.Context, alert Alert)
}

// alertEnvelope is the wire form of an Alert on the signal bus.
type alertEnvelope struct {
	Type    AlertKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAlert encodes an alert as a {"type", "payload"} envelope.
func MarshalAlert(a Alert) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s alert: %w", a.Kind(), err)
	}
	return json.Marshal(alertEnvelope{Type: a.Kind(), Payload: payload})
}

// UnmarshalAlert decodes an envelope produced by MarshalAlert.
func UnmarshalAlert(data []byte) (Alert, error) {
	var env alertEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal alert envelope: %w", err)
	}
	switch env.Type {
	case AlertSurebetDetected:
		var a SurebetDetected
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return a, nil
	case AlertDroppingOdds:
		var a DroppingOdds
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown alert type %q", env.Type)
	}
}
