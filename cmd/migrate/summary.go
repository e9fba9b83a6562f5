package migrate

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/eden-toolkit/coding-nexus-migrator/internal/style"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common/printer"
)

func printSummary(summary types.Summary, dryRun bool) {
	title := "Migration summary"
	if dryRun {
		title = "Migration summary (dry run)"
	}
	pterm.DefaultSection.Println(title)

	pterm.Info.Printfln("Migrated:    %d (%s)", summary.Done, common.GetSize(summary.Bytes))
	pterm.Info.Printfln("Skipped:     %d", summary.Skipped)
	pterm.Info.Printfln("Failed:      %d", summary.Failed)
	if summary.Cancelled > 0 {
		pterm.Info.Printfln("Cancelled:   %d", summary.Cancelled)
	}
	if summary.Unverified > 0 {
		pterm.Warning.Printfln("%s Unverified:  %d (source reported no checksum)", style.WarningIcon(), summary.Unverified)
	}
	pterm.Info.Printfln("Elapsed:     %s", common.GetDuration(summary.Elapsed))
	if summary.Done+summary.Failed > 0 {
		pterm.Info.Printfln("Success:     %.1f%%", summary.SuccessRate())
	}

	if len(summary.Failures) == 0 {
		return
	}

	pterm.DefaultSection.Println("Failed artifacts")
	type failureRow struct {
		Artifact string `json:"artifact"`
		Kind     string `json:"kind"`
		Attempts string `json:"attempts"`
		Reason   string `json:"reason"`
	}
	var rows []failureRow
	for _, f := range summary.SortedFailures() {
		rows = append(rows, failureRow{
			Artifact: f.Key,
			Kind:     f.Kind.String(),
			Attempts: fmt.Sprint(f.Attempts),
			Reason:   f.Reason,
		})
	}
	_ = printer.PrintTable(rows, printer.ColumnMapping{
		{"artifact", "Artifact"},
		{"kind", "Kind"},
		{"attempts", "Attempts"},
		{"reason", "Reason"},
	})
}
