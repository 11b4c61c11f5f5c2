package reconcile

import (
	"strings"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// MapSelection tags an outcome name with a selection. Names equal to the home
// or away team (case-insensitive) map to Home or Away. Everything else,
// including "Draw", "Empate" and unexpected labels, maps to Draw.
func MapSelection(outcome, home, away string) domain.Selection {
	name := strings.TrimSpace(outcome)
	switch {
	case strings.EqualFold(name, strings.TrimSpace(home)):
		return domain.SelectionHome
	case strings.EqualFold(name, strings.TrimSpace(away)):
		return domain.SelectionAway
	default:
		return domain.SelectionDraw
	}
}
