package notify

import (
	"fmt"
	"html"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

const (
	surebetTitle = "🚨 SUREBET ENCONTRADA!"
	dropTitle    = "🔥 DROPPING ODDS!"
)

// Render turns an alert into a Message. siteURL is linked from every channel.
func Render(alert domain.Alert, siteURL string) Message {
	msg := Message{Event: string(alert.Kind()), URL: siteURL}
	home, away := alert.Match()

	switch a := alert.(type) {
	case domain.SurebetDetected:
		profit := a.ProfitPercent.StringFixed(2)
		msg.Title = surebetTitle
		msg.Subject = "🚨 Surebet Encontrada!"
		msg.Body = fmt.Sprintf("%s x %s: +%s%%", home, away, profit)
		msg.HTML = fmt.Sprintf(`<h1>🚨 SUREBET DETECTADA!</h1>
<h2>%s x %s</h2>
<p><strong>Lucro garantido: +%s%%</strong></p>
<p>Aposte nos 3 resultados em casas diferentes e garanta lucro independente do resultado.</p>
<p><a href="%s">Ver Surebet Agora</a></p>`,
			html.EscapeString(home), html.EscapeString(away), profit, html.EscapeString(siteURL))

	case domain.DroppingOdds:
		drop := a.DropPercent.StringFixed(1)
		label := a.SelectionLabel()
		msg.Title = dropTitle
		msg.Subject = "🔥 Dropping Odds Detectada!"
		msg.Body = fmt.Sprintf("%s x %s (%s): ↓%s%% na %s", home, away, label, drop, a.Bookmaker)
		msg.HTML = fmt.Sprintf(`<h1>🔥 DROPPING ODDS DETECTADA!</h1>
<h2>%s x %s</h2>
<p>Odd de <strong>%s</strong> caiu <strong>%s%%</strong> na <strong>%s</strong></p>
<p><a href="%s">Ver Odd Agora</a></p>`,
			html.EscapeString(home), html.EscapeString(away), html.EscapeString(label),
			drop, html.EscapeString(a.Bookmaker), html.EscapeString(siteURL))
	}
	return msg
}
