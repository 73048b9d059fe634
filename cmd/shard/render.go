package main

import (
	"fmt"
	"strings"

	"shard/pkg/chunker"
	"shard/pkg/inventory"
	"shard/pkg/reconstruct"
	"shard/pkg/utils"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	accentColor  = lipgloss.Color("#50FA7B") // Green
	warningColor = lipgloss.Color("#FFB86C") // Orange
	dangerColor  = lipgloss.Color("#FF5555") // Red
	mutedColor   = lipgloss.Color("#6272A4") // Comment
	primaryColor = lipgloss.Color("#8BE9FD") // Cyan

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2)
)

func renderProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(float64(width) * percent / 100)
	empty := width - filled

	bar := lipgloss.NewStyle().Foreground(accentColor).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Repeat("░", empty))

	return fmt.Sprintf("%s %.1f%%", bar, percent)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func renderChunkSummary(s *chunker.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Chunking Summary") + "\n")
	b.WriteString(row("File", s.OriginalFilename) + "\n")
	b.WriteString(row("Size", fmt.Sprintf("%s (%d bytes)", utils.FormatDataSize(s.OriginalSize), s.OriginalSize)) + "\n")
	b.WriteString(row("Hash", fmt.Sprintf("%s (%s)", s.OriginalHash, s.HashType)) + "\n")
	b.WriteString(row("Inventory", s.InventoryPath) + "\n")
	b.WriteString(row("Chunks", fmt.Sprintf("%d processed / %d total", s.Processed, s.TotalChunks)) + "\n")

	if len(s.Failed) > 0 {
		b.WriteString(row("Failed", failStyle.Render(fmt.Sprintf("%v", s.Failed))) + "\n")
	}
	if s.Remaining > 0 {
		b.WriteString(row("Remaining", warnStyle.Render(fmt.Sprintf("%d", s.Remaining))) + "\n")
	} else {
		b.WriteString(row("Remaining", okStyle.Render("none")) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderBlocked(blocked *reconstruct.BlockedError) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Reconstruction Blocked") + "\n")
	b.WriteString(fmt.Sprintf("%d chunks are missing or invalid:\n\n", len(blocked.Problems)))

	for _, p := range blocked.Problems {
		b.WriteString(fmt.Sprintf("  %s %s - %s\n",
			failStyle.Render("✗"), p.ID, p.Reason))
	}

	b.WriteString("\n" + lipgloss.NewStyle().Foreground(mutedColor).
		Render("Regenerate each listed index with: shard chunk <file> --chunk <index>"))

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderReconstructResult(r *reconstruct.Result, validated bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Reconstruction Complete") + "\n")
	b.WriteString(row("Output", r.OutputPath) + "\n")
	b.WriteString(row("Size", fmt.Sprintf("%s (%d bytes)", utils.FormatDataSize(r.BytesWritten), r.BytesWritten)) + "\n")

	switch {
	case r.HashVerified:
		b.WriteString(row("Hash verification", okStyle.Render("PASSED")) + "\n")
	case !validated:
		b.WriteString(row("Hash verification", warnStyle.Render("SKIPPED")) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderInventoryStatus(invPath string, inv *inventory.Inventory, plan *reconstruct.Plan) string {
	var b strings.Builder

	completed := inv.ChunkStatus.TotalProcessed
	percent := 100.0
	if inv.TotalChunks > 0 {
		percent = float64(completed) / float64(inv.TotalChunks) * 100
	}

	b.WriteString(titleStyle.Render("Inventory Status") + "\n")
	b.WriteString(row("File", inv.OriginalFilename) + "\n")
	b.WriteString(row("Size", fmt.Sprintf("%s (%d bytes)", utils.FormatDataSize(inv.OriginalSize), inv.OriginalSize)) + "\n")
	b.WriteString(row("Hash", fmt.Sprintf("%s (%s)", inv.OriginalHash, inv.HashType)) + "\n")
	b.WriteString(row("Chunk size", utils.FormatDataSize(inv.ChunkSize)) + "\n")
	b.WriteString(row("Inventory", invPath) + "\n")
	b.WriteString(row("Created", inv.CreationTime.Format("2006-01-02 15:04:05")) + "\n")
	b.WriteString(row("Updated", inv.LastUpdated.Format("2006-01-02 15:04:05")) + "\n")
	b.WriteString(row("Progress", renderProgressBar(percent, 30)) + "\n")
	b.WriteString(row("Chunks", fmt.Sprintf("%d completed / %d total", completed, inv.TotalChunks)) + "\n")

	if pending := inv.Indices(inventory.StatusPending); len(pending) > 0 {
		b.WriteString(row("Pending", warnStyle.Render(fmt.Sprintf("%v", pending))) + "\n")
	}
	if failed := inv.Indices(inventory.StatusFailed); len(failed) > 0 {
		b.WriteString(row("Failed", failStyle.Render(fmt.Sprintf("%v", failed))) + "\n")
	}

	if plan.Complete() {
		b.WriteString(row("Reconstructable", okStyle.Render("yes")) + "\n")
	} else {
		b.WriteString(row("Reconstructable", failStyle.Render(fmt.Sprintf("no (%d chunk problems)", len(plan.Problems)))) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderVerifyReport(inv *inventory.Inventory, issues []string, plan *reconstruct.Plan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Inventory Audit") + "\n")
	b.WriteString(row("File", inv.OriginalFilename) + "\n")
	b.WriteString(row("Chunks", fmt.Sprintf("%d valid / %d total", len(plan.Chunks), inv.TotalChunks)) + "\n")

	if len(issues) == 0 {
		b.WriteString(row("Structure", okStyle.Render("OK")) + "\n")
	} else {
		b.WriteString(row("Structure", failStyle.Render(fmt.Sprintf("%d issues", len(issues)))) + "\n")
		for _, issue := range issues {
			b.WriteString(fmt.Sprintf("  %s %s\n", failStyle.Render("✗"), issue))
		}
	}

	if plan.Complete() {
		b.WriteString(row("Artifacts", okStyle.Render("all present and valid")) + "\n")
	} else {
		b.WriteString(row("Artifacts", failStyle.Render(fmt.Sprintf("%d problems", len(plan.Problems)))) + "\n")
		for _, p := range plan.Problems {
			b.WriteString(fmt.Sprintf("  %s %s - %s\n", failStyle.Render("✗"), p.ID, p.Reason))
		}
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
