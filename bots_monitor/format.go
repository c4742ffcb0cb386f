package bots_monitor

import (
	"fmt"
	"strings"
	"time"

	"xsn-monitor/internal/crawler"
	"xsn-monitor/internal/monitor"
)

// FormatStatusMessage renders the "My monitors" listing.
func FormatStatusMessage(monitors []monitor.Monitor, lastChecked time.Time) string {
	var b strings.Builder
	b.WriteString("Status of your XSN Address monitors:\n")
	b.WriteString("Last checked: ")
	if lastChecked.IsZero() {
		b.WriteString("Never")
	} else {
		b.WriteString(lastChecked.UTC().Format(monitor.DateFormat))
	}
	b.WriteString("\n")

	for _, m := range monitors {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s (%s):\n", m.Name, m.Address)
		fmt.Fprintf(&b, "Balance: %s XSN\n", m.Balance)
		b.WriteString("Last transaction: ")
		if m.Watermark == 0 {
			b.WriteString("Never")
		} else {
			b.WriteString(monitor.FormatTimestamp(m.Watermark))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatStatsMessage renders the "Bot statistics" reply.
func FormatStatsMessage(stats crawler.Stats) string {
	return fmt.Sprintf("This bot monitors %d addresses from %d users!",
		stats.MonitorCount, stats.OwnerCount)
}
