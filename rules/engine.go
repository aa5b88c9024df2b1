package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/pubomax/website-navigator/internal/logger"
)

// costLimit bounds the runtime cost of a single segment predicate
const costLimit = 1000000

// Engine compiles a table's segment rules to CEL programs and evaluates them
// in priority order. Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	table    *Table
	ordered  []SegmentRule          // stable-sorted by priority
	programs map[string]cel.Program // ruleID -> compiled program
	mu       sync.RWMutex
}

// NewSegmentEnv creates the CEL environment segment rules are compiled against
func NewSegmentEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("utmSource", cel.StringType),
		cel.Variable("utmMedium", cel.StringType),
		cel.Variable("utmCampaign", cel.StringType),
		cel.Variable("referrer", cel.StringType),
		cel.Variable("visitCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates an engine for table using the default segment environment
func NewEngine(table *Table) (*Engine, error) {
	env, err := NewSegmentEnv()
	if err != nil {
		return nil, err
	}
	return NewEngineWithEnv(env, table)
}

// NewEngineWithEnv creates an engine with a custom CEL environment.
// Every segment rule in table is compiled up front.
func NewEngineWithEnv(env *cel.Env, table *Table) (*Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("rule table is nil")
	}

	en := &Engine{
		env:      env,
		table:    table,
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Table returns the table the engine was built from
func (en *Engine) Table() *Table {
	return en.table
}

// CompileRule compiles a single segment rule expression to a CEL program.
// Non-boolean expressions are rejected at compile time.
func (en *Engine) CompileRule(ruleID, expression string) error {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackCost),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles every segment rule of the table and fixes
// evaluation order: ascending priority, declaration order within a priority.
func (en *Engine) CompileAllRules() error {
	seen := make(map[string]bool, len(en.table.Segments))
	for _, rule := range en.table.Segments {
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule ID %s", rule.ID)
		}
		seen[rule.ID] = true

		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	ordered := make([]SegmentRule, len(en.table.Segments))
	copy(ordered, en.table.Segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	en.mu.Lock()
	en.ordered = ordered
	en.mu.Unlock()

	return nil
}

// Evaluate evaluates a single rule against vars
func (en *Engine) Evaluate(ruleID string, vars Vars) (*EvaluationResult, error) {
	en.mu.RLock()
	prog, exists := en.programs[ruleID]
	var rule *SegmentRule
	for i := range en.ordered {
		if en.ordered[i].ID == ruleID {
			rule = &en.ordered[i]
			break
		}
	}
	en.mu.RUnlock()

	if !exists || rule == nil {
		return nil, fmt.Errorf("rule %s is not compiled", ruleID)
	}

	result := en.eval(prog, *rule, vars)
	return result, result.Error
}

// EvaluateAll evaluates every rule in priority order.
// Evaluation errors are recorded per rule and do not stop the pass.
func (en *Engine) EvaluateAll(vars Vars) []*EvaluationResult {
	en.mu.RLock()
	ordered := en.ordered
	en.mu.RUnlock()

	results := make([]*EvaluationResult, 0, len(ordered))
	for _, rule := range ordered {
		en.mu.RLock()
		prog, exists := en.programs[rule.ID]
		en.mu.RUnlock()

		if !exists {
			results = append(results, &EvaluationResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Segment:  rule.Segment,
				Priority: rule.Priority,
				Error:    fmt.Errorf("rule %s is not compiled", rule.ID),
			})
			continue
		}
		results = append(results, en.eval(prog, rule, vars))
	}
	return results
}

// Match returns the first rule that matches vars in priority order.
// A rule whose evaluation fails is treated as not matching.
func (en *Engine) Match(vars Vars) (SegmentRule, bool) {
	en.mu.RLock()
	ordered := en.ordered
	en.mu.RUnlock()

	for _, rule := range ordered {
		en.mu.RLock()
		prog, exists := en.programs[rule.ID]
		en.mu.RUnlock()
		if !exists {
			continue
		}
		res := en.eval(prog, rule, vars)
		if res.Error != nil {
			logger.RuleError(rule.ID, res.Error)
			continue
		}
		if res.Matched {
			return rule, true
		}
	}
	return SegmentRule{}, false
}

func (en *Engine) eval(prog cel.Program, rule SegmentRule, vars Vars) *EvaluationResult {
	result := &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Segment:  rule.Segment,
		Priority: rule.Priority,
	}

	out, details, err := prog.Eval(vars.activation())
	if err != nil {
		result.Error = err
		return result
	}

	if boolVal, ok := out.Value().(bool); ok {
		result.Matched = boolVal
	}
	if details != nil {
		if cost := details.ActualCost(); cost != nil {
			result.Cost = *cost
		}
	}
	return result
}
