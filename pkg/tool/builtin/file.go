package builtin

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/tool"
	"github.com/goclaw/hyperagent/pkg/vsa"
)

type fileRead struct {
	graph    *kg.Graph
	root     string
	maxBytes int64
}

func (f *fileRead) Signature() tool.Signature {
	return tool.Signature{
		Name:        tool.FileRead,
		Description: "read a text file under the workspace root and link its words to known symbols",
		Params: map[string]string{
			tool.ParamPath:  "file path relative to the workspace root",
			tool.ParamQuery: "text used to pick a file when no path is given",
		},
	}
}

// Execute reads path, or the first file whose name mentions a query word
// when no path is given. Paths must stay inside the root.
func (f *fileRead) Execute(ctx context.Context, in tool.Input) (tool.Output, error) {
	path := strings.TrimSpace(in.String(tool.ParamPath))
	if path == "" {
		found, err := f.find(in.String(tool.ParamQuery))
		if err != nil {
			return tool.Output{}, err
		}
		if found == "" {
			return tool.Output{Text: "no matching file", Success: false}, nil
		}
		path = found
	}

	full, err := f.confine(path)
	if err != nil {
		return tool.Output{}, err
	}
	fh, err := os.Open(full)
	if err != nil {
		return tool.Output{}, err
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, f.maxBytes))
	if err != nil {
		return tool.Output{}, err
	}
	text := string(data)

	index := conceptIndex(f.graph)
	var syms symbolSet
	for _, tok := range vsa.Tokenize(text) {
		if id, ok := index[tok]; ok {
			syms.add(id)
		}
	}
	return tool.Output{
		Symbols: syms.ids,
		Text:    text,
		Success: true,
	}, nil
}

// confine resolves path against the root and rejects escapes.
func (f *fileRead) confine(path string) (string, error) {
	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, path)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes root", tool.ErrInvalidInput, path)
	}
	return full, nil
}

func (f *fileRead) find(query string) (string, error) {
	words := vsa.Tokenize(query)
	if len(words) == 0 {
		return "", nil
	}
	var found string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, w := range words {
			if strings.Contains(name, w) {
				found, _ = filepath.Rel(f.root, p)
				return fs.SkipAll
			}
		}
		return nil
	})
	return found, err
}
