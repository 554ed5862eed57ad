package usecase

import (
	"fmt"
	"html"
	"strings"

	"TrendWatch/internal/domain/models"
)

const DefaultSubject = "Trading Bot Notifications"

// RenderReport builds the notification for a cycle.
func RenderReport(cycleID, subject string, summaries []models.SymbolSummary, diffs []string) models.Report {
	if subject == "" {
		subject = DefaultSubject
	}
	return models.Report{
		CycleID:     cycleID,
		Subject:     subject,
		HTML:        RenderHTML(summaries, diffs),
		Text:        RenderText(summaries, diffs),
		Differences: diffs,
		Summaries:   summaries,
	}
}

func summaryColor(c models.Condition) string {
	if c.IsBuy() {
		return "green"
	}
	return "red"
}

// RenderHTML renders the email body. Buy summaries are green, sell summaries red.
func RenderHTML(summaries []models.SymbolSummary, diffs []string) string {
	var b strings.Builder
	b.WriteString("<html>\n<body>\n<h3>Latest Stock Data:</h3>\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "<p style=\"background-color:%s;\">\nSymbol: %s<br>\nAction: %s<br>\nAction Date: %s<br>\nPrice: %s<br>\n</p>\n",
			summaryColor(s.Condition),
			html.EscapeString(s.Symbol),
			html.EscapeString(string(s.Condition)),
			html.EscapeString(s.ActionDate),
			html.EscapeString(s.Price),
		)
	}

	escaped := make([]string, len(diffs))
	for i, d := range diffs {
		escaped[i] = html.EscapeString(d)
	}
	b.WriteString("<h3>Differences Detected:</h3>\n<p>")
	b.WriteString(strings.Join(escaped, "<br>"))
	b.WriteString("</p>\n</body>\n</html>\n")
	return b.String()
}

// RenderText renders the plain-text variant used by chat channels.
func RenderText(summaries []models.SymbolSummary, diffs []string) string {
	var b strings.Builder
	b.WriteString("Latest Stock Data:\n")
	for _, s := range summaries {
		side := "SELL"
		if s.Condition.IsBuy() {
			side = "BUY"
		}
		fmt.Fprintf(&b, "[%s] %s %s on %s at %s\n", side, s.Symbol, s.Condition, s.ActionDate, s.Price)
	}
	b.WriteString("\nDifferences Detected:\n")
	if len(diffs) == 0 {
		b.WriteString("none\n")
	}
	for _, d := range diffs {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}
