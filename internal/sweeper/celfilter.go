package sweeper

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// celPredicate wraps a compiled CEL program evaluated per document during a
// sweep. When disabled, Eval always returns true.
type celPredicate struct {
	prog    cel.Program
	enabled bool
}

func newCELPredicate(expr string) (celPredicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celPredicate{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("document", cel.StringType),
		cel.Variable("records", cel.IntType),
		cel.Variable("bytes", cel.IntType),
		cel.Variable("first_seq", cel.IntType),
		cel.Variable("last_seq", cel.IntType),
		// Current time in ms for windowed policies
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celPredicate{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celPredicate{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celPredicate{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celPredicate{}, err
	}
	return celPredicate{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one document's stats. Evaluation
// errors and non-boolean results read as false, so a bad expression cannot
// select everything.
func (p celPredicate) Eval(documentID string, stats updatelog.Stats) bool {
	if !p.enabled {
		return true
	}
	out, _, err := p.prog.Eval(map[string]any{
		"document":  documentID,
		"records":   int64(stats.Records),
		"bytes":     int64(stats.Bytes),
		"first_seq": int64(stats.FirstSeq),
		"last_seq":  int64(stats.LastSeq),
		"now_ms":    time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
