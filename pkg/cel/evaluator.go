package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Input is the set of variables a filter expression can reference.
type Input struct {
	ID        int64
	Source    int64
	Topic     int64
	Text      string
	HasMedia  bool
	Protected bool
}

func (in Input) vars() map[string]interface{} {
	return map[string]interface{}{
		"id":        in.ID,
		"source":    in.Source,
		"topic":     in.Topic,
		"text":      in.Text,
		"has_media": in.HasMedia,
		"protected": in.Protected,
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("source", cel.IntType),
		cel.Variable("topic", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("has_media", cel.BoolType),
		cel.Variable("protected", cel.BoolType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// CompileFilter compiles a boolean filter expression once so it can be
// evaluated for every message.
func (e *Evaluator) CompileFilter(expression string) (*Filter, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

// EvaluateFilter compiles and evaluates expression in one step.
func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, in Input) (bool, error) {
	f, err := e.CompileFilter(expression)
	if err != nil {
		return false, err
	}
	return f.Evaluate(ctx, in)
}

// Filter is a compiled boolean expression.
type Filter struct {
	expression string
	program    cel.Program
}

func (f *Filter) Expression() string {
	return f.expression
}

func (f *Filter) Evaluate(ctx context.Context, in Input) (bool, error) {
	result, _, err := f.program.ContextEval(ctx, in.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
