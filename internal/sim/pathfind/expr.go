package pathfind

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEnv is the variable set visible to cost expressions.
type ExprEnv struct {
	Distance      float64 `expr:"distance"`
	StructureCost float64 `expr:"structure_cost"`
	CrowFlies     float64 `expr:"crow_flies"`
	Steps         int     `expr:"steps"`
	Turns         int     `expr:"turns"`
}

// ExprModel is a CostModel backed by a compiled expression, for example
// "distance + 3 * structure_cost + crow_flies + turns".
type ExprModel struct {
	source  string
	program *vm.Program
}

// CompileModel compiles and probes src. The probe run catches expressions that
// compile but fail at run time (division by a zero component and similar).
func CompileModel(src string) (*ExprModel, error) {
	program, err := expr.Compile(src, expr.Env(ExprEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("cost model %q: %w", src, err)
	}
	m := &ExprModel{source: src, program: program}
	if _, err := m.eval(ExprEnv{Distance: 1, StructureCost: 1, CrowFlies: 1, Steps: 1, Turns: 1}); err != nil {
		return nil, fmt.Errorf("cost model %q: %w", src, err)
	}
	return m, nil
}

func (m *ExprModel) Source() string { return m.source }

// Score returns +Inf when evaluation fails, which pushes the node to the back
// of the frontier instead of aborting the search.
func (m *ExprModel) Score(distance, structureCost, crowFlies float64, steps, turns int) float64 {
	v, err := m.eval(ExprEnv{
		Distance:      distance,
		StructureCost: structureCost,
		CrowFlies:     crowFlies,
		Steps:         steps,
		Turns:         turns,
	})
	if err != nil || math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

func (m *ExprModel) eval(env ExprEnv) (float64, error) {
	out, err := expr.Run(m.program, env)
	if err != nil {
		return 0, err
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("non-numeric result %T", out)
	}
	return f, nil
}
