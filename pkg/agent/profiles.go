package agent

import "strings"

// semanticProfile describes a tool the generator scores by comparing the goal
// to a bag of concepts. Zero Floor means the configured SemanticFloor.
type semanticProfile struct {
	Tool       string
	Concepts   []string
	Floor      float64
	Multiplier float64
	MinBase    float64
	MaxBase    float64
}

// semanticProfiles is in generation order.
var semanticProfiles = []semanticProfile{
	{
		Tool:       "file_read",
		Concepts:   []string{"file", "document", "read", "source", "code", "text", "config", "notes", "directory"},
		Multiplier: 0.75,
		MaxBase:    0.8,
	},
	{
		Tool:       "http_fetch",
		Concepts:   []string{"web", "url", "http", "fetch", "download", "page", "website", "api", "online"},
		Multiplier: 0.75,
		MaxBase:    0.8,
	},
	{
		Tool:       "shell_exec",
		Concepts:   []string{"command", "shell", "run", "execute", "script", "terminal", "process", "build"},
		Floor:      0.58,
		Multiplier: 0.7,
		MaxBase:    0.75,
	},
	{
		Tool:       "infer_rules",
		Concepts:   []string{"rule", "infer", "pattern", "deduce", "logic", "derive", "conclude", "relation"},
		Multiplier: 0.8,
		MinBase:    0.45,
		MaxBase:    0.85,
	},
	{
		Tool:       "gap_analysis",
		Concepts:   []string{"gap", "missing", "unknown", "incomplete", "coverage", "understand", "learn", "explore"},
		Multiplier: 0.8,
		MinBase:    0.45,
		MaxBase:    0.85,
	},
	{
		Tool:       "user_interact",
		Concepts:   []string{"ask", "user", "question", "clarify", "confirm", "human", "preference", "feedback"},
		Multiplier: 0.7,
		MaxBase:    0.75,
	},
	{
		Tool:       "ingest_content",
		Concepts:   []string{"ingest", "import", "content", "article", "paper", "book", "extract", "summarize"},
		Multiplier: 0.75,
		MaxBase:    0.8,
	},
	{
		Tool:       "library_search",
		Concepts:   []string{"library", "search", "catalog", "reference", "book", "paper", "literature", "index"},
		Multiplier: 0.75,
		MaxBase:    0.8,
	},
}

func (p semanticProfile) floor(th Thresholds) float64 {
	if p.Floor > 0 {
		return p.Floor
	}
	return th.SemanticFloor
}

func (p semanticProfile) base(sim float64) float64 {
	b := sim * p.Multiplier
	if b < p.MinBase {
		b = p.MinBase
	}
	if p.MaxBase > 0 && b > p.MaxBase {
		b = p.MaxBase
	}
	return b
}

func (p semanticProfile) text() string {
	return strings.Join(p.Concepts, " ")
}
