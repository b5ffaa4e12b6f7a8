package agent

import (
	"regexp"

	"github.com/goclaw/hyperagent/pkg/memory"
)

var (
	toolResultHint = regexp.MustCompile(`Tool result \(([A-Za-z0-9_.\-]+)\)`)
	decisionHint   = regexp.MustCompile(`Decision: use ([A-Za-z0-9_.\-]+)`)
)

// ExtractEpisodicHints returns the tool names mentioned in recalled episodes.
func ExtractEpisodicHints(episodes []memory.Episode) map[string]struct{} {
	hints := make(map[string]struct{})
	for _, ep := range episodes {
		for _, re := range []*regexp.Regexp{toolResultHint, decisionHint} {
			for _, m := range re.FindAllStringSubmatch(ep.Summary, -1) {
				hints[m[1]] = struct{}{}
			}
		}
	}
	return hints
}
