package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"quotearchiver/internal/model"
)

// FormatRunReport renders a finished run as a Telegram HTML message.
func FormatRunReport(run *model.RunSummary) string {
	var sb strings.Builder

	if run.Status == model.RunOK {
		sb.WriteString(fmt.Sprintf("✅ <b>Harvest %s</b>\n\n", run.RunDate))
	} else {
		sb.WriteString(fmt.Sprintf("❌ <b>Harvest %s failed</b>\n\n", run.RunDate))
	}

	if run.WatchlistCreated {
		sb.WriteString(fmt.Sprintf("Watchlist created: %d instruments\n", run.Instruments))
	} else {
		sb.WriteString(fmt.Sprintf("Instruments: %d\n", run.Instruments))
	}
	sb.WriteString(fmt.Sprintf("Fetched: %d | Skipped: %d\n", run.Fetched, run.Skipped))
	if !run.FinishedAt.IsZero() && !run.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second)))
	}
	if run.Err != nil {
		sb.WriteString(fmt.Sprintf("\n<code>%s</code>\n", html.EscapeString(run.Err.Error())))
	}
	sb.WriteString(fmt.Sprintf("\n<i>run %s</i>", run.ID))
	return sb.String()
}
