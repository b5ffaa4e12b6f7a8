// Package tool defines the agent's action vocabulary: tool signatures, the
// registry that executes them, and optional hooks that bias or veto selection.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goclaw/hyperagent/pkg/kg"
)

// Sentinel errors for tool execution.
var (
	ErrUnknownTool  = errors.New("tool: unknown tool")
	ErrDuplicate    = errors.New("tool: already registered")
	ErrInvalidInput = errors.New("tool: invalid input")
)

// Signature describes a tool to the selector.
type Signature struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	// Params maps each accepted input parameter to its description.
	Params      map[string]string `json:"params,omitempty"`
}

// Input holds the named parameters of a tool call.
type Input map[string]any

// String returns the named parameter as a string, or "" when absent.
func (in Input) String(key string) string {
	switch v := in[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Symbol returns the named parameter as a symbol id.
func (in Input) Symbol(key string) (kg.SymbolID, bool) {
	switch v := in[key].(type) {
	case kg.SymbolID:
		return v, v != 0
	case uint64:
		return kg.SymbolID(v), v != 0
	case int:
		return kg.SymbolID(v), v > 0
	case float64:
		return kg.SymbolID(v), v > 0
	}
	return 0, false
}

// Float returns the named numeric parameter, or def when absent.
func (in Input) Float(key string, def float64) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Int returns the named integer parameter, or def when absent or not positive.
func (in Input) Int(key string, def int) int {
	var n int
	switch v := in[key].(type) {
	case int:
		n = v
	case float64:
		n = int(v)
	case uint64:
		n = int(v)
	}
	if n <= 0 {
		return def
	}
	return n
}

// Output is what a tool produced.
type Output struct {
	Symbols []kg.SymbolID `json:"symbols,omitempty"`
	Text    string        `json:"text"`
	Success bool          `json:"success"`
}

// Tool is an executable action.
type Tool interface {
	Signature() Signature
	Execute(ctx context.Context, in Input) (Output, error)
}

// ExecutionError is returned when a tool cannot run or fails.
type ExecutionError struct {
	Tool  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ArchetypeBiaser optionally shifts a candidate's score for a goal. The
// bias is added to the candidate unmodified.
type ArchetypeBiaser interface {
	ArchetypeBias(toolName string, goalID kg.SymbolID) float64
}

// Vetoer optionally removes a tool from consideration for a goal.
type Vetoer interface {
	Veto(toolName string, goalID kg.SymbolID) bool
}

// Names of the built-in tools the selector scores directly.
const (
	KGQuery          = "kg_query"
	KGMutate         = "kg_mutate"
	MemoryRecall     = "memory_recall"
	Reason           = "reason"
	SimilaritySearch = "similarity_search"
	GapAnalysis      = "gap_analysis"
	FileRead         = "file_read"
)

// Input parameter names shared by the selector and the built-in tools.
const (
	ParamTarget     = "target"
	ParamSubject    = "subject"
	ParamPredicate  = "predicate"
	ParamObject     = "object"
	ParamConfidence = "confidence"
	ParamQuery      = "query"
	ParamGoal       = "goal"
	ParamExpression = "expression"
	ParamK          = "k"
	ParamPath       = "path"
)

// Sanitize lowercases label and replaces every rune outside [a-z0-9_] with
// an underscore, producing an atom usable in a reasoning expression.
func Sanitize(label string) string {
	b := []byte(strings.ToLower(label))
	for i, c := range b {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			b[i] = '_'
		}
	}
	return string(b)
}
