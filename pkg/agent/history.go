package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
)

const (
	decisionPrefix   = "Decision: use "
	toolResultPrefix = "Tool result ("
	targetMarker     = " | target: "
	fieldSeparator   = " | "
)

var decisionPattern = regexp.MustCompile(`^Decision: use ([A-Za-z0-9_.\-]+) for goal \d+`)

// formatDecision renders the decision entry that ExtractGoalHistory parses.
func formatDecision(c *ToolCandidate, goalID kg.SymbolID, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s for goal %d", decisionPrefix, c.Tool, goalID)
	if target != "" {
		b.WriteString(targetMarker)
		b.WriteString(target)
	}
	b.WriteString(fieldSeparator)
	b.WriteString(c.Breakdown())
	b.WriteString(fieldSeparator)
	b.WriteString(c.Reasoning)
	return b.String()
}

// formatToolResult renders the result entry of an action.
func formatToolResult(name string, success bool, text string) string {
	status := "ok"
	if !success {
		status = "failed"
	}
	return fmt.Sprintf("%s%s) %s: %s", toolResultPrefix, name, status, text)
}

// GoalHistory is how a goal has been worked on so far.
type GoalHistory struct {
	// Counts is the number of decisions per tool.
	Counts map[string]int
	// Recent lists tools in decision order, most recent last.
	Recent []string
	// Targets are the labels previously queried for the goal.
	Targets []string
}

// Used reports whether tool was ever chosen for the goal.
func (h GoalHistory) Used(tool string) bool {
	return h.Counts[tool] > 0
}

// Queried reports whether label was already a query target.
func (h GoalHistory) Queried(label string) bool {
	for _, t := range h.Targets {
		if t == label {
			return true
		}
	}
	return false
}

// RecencyRank returns 1 for the most recently used distinct tool, 2 for the
// one before it and so on. Unused tools rank 0.
func (h GoalHistory) RecencyRank(tool string) int {
	rank := 0
	seen := make(map[string]struct{}, len(h.Recent))
	for i := len(h.Recent) - 1; i >= 0; i-- {
		name := h.Recent[i]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rank++
		if name == tool {
			return rank
		}
	}
	return 0
}

// ExtractGoalHistory scans decision entries whose first symbol is goalID.
func ExtractGoalHistory(wm WorkingMemory, goalID kg.SymbolID) GoalHistory {
	h := GoalHistory{Counts: make(map[string]int)}
	if wm == nil {
		return h
	}
	for _, e := range wm.ByKind(memory.KindDecision) {
		if len(e.Symbols) == 0 || e.Symbols[0] != goalID {
			continue
		}
		m := decisionPattern.FindStringSubmatch(e.Content)
		if m == nil {
			continue
		}
		h.Counts[m[1]]++
		h.Recent = append(h.Recent, m[1])
		if target := parseTarget(e.Content); target != "" {
			h.Targets = append(h.Targets, target)
		}
	}
	return h
}

// RecencyEntries selects, for every goal, the latest decision of each of its
// most recently used distinct tools, as many as there are recency ranks, plus
// the tool results pushed in those decisions' cycles. Keeping these in
// working memory preserves every recency penalty across consolidation.
func RecencyEntries(entries []memory.Entry) []memory.EntryID {
	type goalTools map[string]struct{}
	seen := make(map[kg.SymbolID]goalTools)
	cycles := make(map[uint64]struct{})
	var keep []memory.EntryID

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind != memory.KindDecision || len(e.Symbols) == 0 {
			continue
		}
		m := decisionPattern.FindStringSubmatch(e.Content)
		if m == nil {
			continue
		}
		tools := seen[e.Symbols[0]]
		if tools == nil {
			tools = make(goalTools, len(recencyPenalties))
			seen[e.Symbols[0]] = tools
		}
		if _, dup := tools[m[1]]; dup || len(tools) == len(recencyPenalties) {
			continue
		}
		tools[m[1]] = struct{}{}
		cycles[e.SourceCycle] = struct{}{}
		keep = append(keep, e.ID)
	}
	for _, e := range entries {
		if e.Kind != memory.KindToolResult {
			continue
		}
		if _, ok := cycles[e.SourceCycle]; ok {
			keep = append(keep, e.ID)
		}
	}
	return keep
}

func parseTarget(content string) string {
	i := strings.Index(content, targetMarker)
	if i < 0 {
		return ""
	}
	rest := content[i+len(targetMarker):]
	if j := strings.Index(rest, fieldSeparator); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
