package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/goclaw/hyperagent/pkg/agent"
	"github.com/goclaw/hyperagent/pkg/engine"
)

func renderCycles(out io.Writer, eng *engine.Engine, results []*agent.CycleResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle("Cycles")
	tw.AppendHeader(table.Row{"Cycle", "Goal", "Tool", "Score", "Progress", "Impasse", "Duration"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Score", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Goal", WidthMax: 40},
	})
	for _, res := range results {
		progress := ""
		if res.Action.Progress != nil {
			progress = res.Action.Progress.String()
		}
		impasse := ""
		if res.Impasse != nil {
			impasse = res.Impasse.Kind.String()
		}
		tw.AppendRow(table.Row{
			res.Cycle,
			eng.GoalKey(res.Decision.GoalID),
			res.Decision.Tool,
			fmt.Sprintf("%.3f", res.Decision.Score),
			progress,
			impasse,
			res.Duration.Round(time.Microsecond),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "cycles", len(results)})
	tw.Render()
}

func renderGoals(out io.Writer, eng *engine.Engine) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle("Goals")
	tw.AppendHeader(table.Row{"ID", "Description", "Priority", "Status", "Cycles", "Last progress"})
	for _, g := range eng.ListGoals() {
		tw.AppendRow(table.Row{g.ID, g.Description, g.Priority, g.Status, g.CyclesWorked, g.LastProgressCycle})
	}
	tw.Render()
}
