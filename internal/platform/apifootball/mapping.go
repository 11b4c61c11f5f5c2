package apifootball

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Team is a mapped team reference.
type Team struct {
	ID       int
	Name     string
	Logo     string
	LeagueID int
}

// Mapping resolves feed team and league names to API-Football IDs. It is
// built once per cycle by Client.BuildMapping and is read-only afterwards.
type Mapping struct {
	Season  int
	teams   map[string]Team
	leagues map[string]int
}

// NewMapping returns an empty mapping for season.
func NewMapping(season int) *Mapping {
	return &Mapping{
		Season:  season,
		teams:   make(map[string]Team),
		leagues: make(map[string]int),
	}
}

// AddTeam registers a team under its normalised name. The first league a team
// is seen in wins.
func (m *Mapping) AddTeam(t Team) {
	key := NormalizeName(t.Name)
	if key == "" {
		return
	}
	if _, ok := m.teams[key]; !ok {
		m.teams[key] = t
	}
}

// AddLeague registers a league under its normalised name.
func (m *Mapping) AddLeague(name string, id int) {
	if key := NormalizeName(name); key != "" {
		m.leagues[key] = id
	}
}

// Team looks up a team by feed name.
func (m *Mapping) Team(name string) (Team, bool) {
	if m == nil {
		return Team{}, false
	}
	t, ok := m.teams[NormalizeName(name)]
	return t, ok
}

// League looks up a league ID by name.
func (m *Mapping) League(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.leagues[NormalizeName(name)]
	return id, ok
}

// Teams returns the number of mapped teams.
func (m *Mapping) Teams() int {
	if m == nil {
		return 0
	}
	return len(m.teams)
}

// NormalizeName lower-cases, trims and strips diacritics, so "São Paulo" and
// "Sao Paulo" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		return name
	}
	return out
}
