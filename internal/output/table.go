// Package output renders CLI tables and progress indicators.
//
// Tables are plain text with a rule under the header. Color is only emitted
// when stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/backup"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/installer"
	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/resolver"
	"github.com/LulfLoot/ThunderDockerman/internal/store"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func rule(sb *strings.Builder, width int) {
	sb.WriteString(strings.Repeat("─", width))
	sb.WriteString("\n")
}

// RenderCommunities renders the supported communities.
func RenderCommunities(communities []thunderstore.Community) string {
	if len(communities) == 0 {
		return "No communities configured.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %s\n", "ID", "Name"))
	rule(&sb, 50)
	for _, c := range communities {
		sb.WriteString(fmt.Sprintf("%-24s %s\n", c.ID, c.Name))
	}
	return sb.String()
}

// RenderPackageTable renders search results in the order given, at most
// limit rows (all rows when limit <= 0).
func RenderPackageTable(packages []thunderstore.Package, limit int) string {
	if len(packages) == 0 {
		return "No packages found.\n"
	}

	shown := packages
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-40s %-10s %-10s %-8s %s\n",
		"Package", "Version", "Downloads", "Rating", "Updated"))
	rule(&sb, 86)

	for i := range shown {
		p := &shown[i]
		name := truncate(p.FullName, 40)
		if p.Deprecated {
			name = colorize(colorGray, fmt.Sprintf("%-40s", name))
		} else {
			name = fmt.Sprintf("%-40s", name)
		}
		sb.WriteString(fmt.Sprintf("%s %-10s %-10s %-8d %s\n",
			name,
			p.Latest().Number,
			formatCount(p.TotalDownloads()),
			p.Rating,
			formatRelativeTime(p.LastUpdated)))
	}

	if len(shown) < len(packages) {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(packages)-len(shown)))
	}
	return sb.String()
}

// RenderPlanTable renders a resolution plan in install order.
func RenderPlanTable(plan resolver.Plan) string {
	if len(plan) == 0 {
		return "Nothing to install.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-4s %-40s %-10s %s\n", "#", "Package", "Version", "Dependencies"))
	rule(&sb, 72)
	for i, rel := range plan {
		sb.WriteString(fmt.Sprintf("%-4d %-40s %-10s %d\n",
			i+1,
			truncate(rel.FullName, 40),
			rel.Version,
			len(rel.Dependencies)))
	}
	return sb.String()
}

// RenderResults renders per-package install or uninstall outcomes.
func RenderResults(results []installer.Result) string {
	if len(results) == 0 {
		return "No packages processed.\n"
	}

	var sb strings.Builder
	failed := 0
	for _, r := range results {
		mark := colorize(colorGreen, "✓")
		if !r.Success {
			mark = colorize(colorRed, "✗")
			failed++
		}
		sb.WriteString(fmt.Sprintf("%s %s", mark, r.FullName))
		if r.Version != "" {
			sb.WriteString(" " + r.Version)
		}
		if !r.Success && r.Message != "" {
			sb.WriteString(": " + r.Message)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n%d succeeded, %d failed\n", len(results)-failed, failed))
	return sb.String()
}

// RenderInstalledTable renders installed mods sorted by name.
func RenderInstalledTable(records []*mods.Record) string {
	if len(records) == 0 {
		return "No mods installed.\n"
	}

	sorted := make([]*mods.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].FullName) < strings.ToLower(sorted[j].FullName)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-40s %-10s %-6s %s\n", "Mod", "Version", "Files", "Installed"))
	rule(&sb, 76)
	for _, rec := range sorted {
		sb.WriteString(fmt.Sprintf("%-40s %-10s %-6d %s\n",
			truncate(rec.FullName, 40),
			rec.Version,
			len(rec.Files),
			formatRelativeTime(rec.InstalledAt)))
	}
	return sb.String()
}

// RenderHistoryTable renders install history entries as given.
func RenderHistoryTable(events []*store.InstallEvent) string {
	if len(events) == 0 {
		return "No install history.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-17s %-10s %-40s %-10s %s\n", "When", "Action", "Mod", "Version", "Result"))
	rule(&sb, 90)
	for _, e := range events {
		result := colorize(colorGreen, "ok")
		if !e.Success {
			result = colorize(colorRed, "failed")
			if e.Message != "" {
				result += ": " + truncate(e.Message, 60)
			}
		}
		sb.WriteString(fmt.Sprintf("%-17s %-10s %-40s %-10s %s\n",
			formatRelativeTime(e.Timestamp),
			e.Action,
			truncate(e.FullName, 40),
			e.Version,
			result))
	}
	return sb.String()
}

// RenderBackupTable renders backups in the order given.
func RenderBackupTable(backups []*backup.Backup) string {
	if len(backups) == 0 {
		return "No backups found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-42s %-9s %s\n", "Backup", "Size", "Created"))
	rule(&sb, 72)
	var total int64
	for _, b := range backups {
		total += b.Size
		sb.WriteString(fmt.Sprintf("%-42s %-9s %s\n",
			b.Filename,
			formatSize(b.Size),
			formatRelativeTime(b.Created)))
	}
	sb.WriteString(fmt.Sprintf("\n%d backups, %s total\n", len(backups), formatSize(total)))
	return sb.String()
}

// RenderServerStatus renders the container state and auto-stop settings.
func RenderServerStatus(state container.State, auto *autostop.Status) string {
	var sb strings.Builder

	status := state.Status
	if status == "" {
		status = "unknown"
	}
	if state.Running {
		status = colorize(colorGreen, status)
	} else {
		status = colorize(colorYellow, status)
	}

	sb.WriteString(fmt.Sprintf("Container:  %s\n", state.Name))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", status))
	if state.Running && !state.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Up since:   %s (%s)\n",
			state.StartedAt.Local().Format(time.DateTime), formatUptime(time.Since(state.StartedAt))))
	}

	if auto != nil {
		if auto.Enabled {
			sb.WriteString(fmt.Sprintf("Auto-stop:  after %s idle", formatMinutes(auto.TimeoutMinutes)))
			if auto.IdleMinutes > 0 {
				sb.WriteString(fmt.Sprintf(" (idle for %s)", formatMinutes(auto.IdleMinutes)))
			}
			sb.WriteString("\n")
		} else {
			sb.WriteString("Auto-stop:  disabled\n")
		}
	}
	return sb.String()
}

// formatSize converts bytes to human-readable size (GB, MB, KB).
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatCount abbreviates large counts: 1234 → "1.2k", 3400000 → "3.4M".
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatMinutes(m float64) string {
	if m == float64(int(m)) {
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(m))
	}
	return fmt.Sprintf("%.1f minutes", m)
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
