package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

type memoryRecall struct {
	episodes *memory.EpisodicStore
	encoder  interface {
		Encode(text string) (vsa.Vector, error)
	}
}

func (r *memoryRecall) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.MemoryRecall,
		Description: "recall past episodes relevant to a query from episodic memory",
		Params: map[string]string{
			tool.ParamQuery: "text to match against past episodes",
			tool.ParamK:     "number of episodes, default 3",
		},
	}
}

func (r *memoryRecall) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	query := strings.TrimSpace(in.String(tool.ParamQuery))
	if query == "" {
		return tool.Output{}, fmt.Errorf("%w: query is required", tool.ErrInvalidInput)
	}
	// An unencodable query still recalls by text.
	vec, _ := r.encoder.Encode(query)

	eps, err := r.episodes.Recall(ctx, query, vec, in.Int(tool.ParamK, 3))
	if err != nil {
		return tool.Output{}, err
	}
	if len(eps) == 0 {
		return tool.Output{Text: "no episodes recalled", Success: true}, nil
	}

	var syms symbolSet
	summaries := make([]string, len(eps))
	for i, ep := range eps {
		syms.add(ep.Symbols...)
		summaries[i] = ep.Summary
	}
	return tool.Output{
		Symbols: syms.ids,
		Text:    strings.Join(summaries, "\n"),
		Success: true,
	}, nil
}
