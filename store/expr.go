package store

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// questionEnv declares the variables a filter expression can reference.
func questionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("year", cel.IntType),
		cel.Variable("topic", cel.StringType),
		cel.Variable("paper", cel.StringType),
	)
}

// exprMatcher evaluates a compiled filter expression against questions.
type exprMatcher struct {
	program cel.Program
}

func compileExpr(expr string) (*exprMatcher, error) {
	env, err := questionEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create expression environment")
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build expression program")
	}
	return &exprMatcher{program: program}, nil
}

func (m *exprMatcher) match(q *Question) (bool, error) {
	out, _, err := m.program.Eval(map[string]any{
		"id":    q.ID,
		"year":  int64(q.Year),
		"topic": q.Topic,
		"paper": q.Paper,
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate expression for %s", q.ID)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("expression returned %T for %s", out.Value(), q.ID)
	}
	return matched, nil
}
