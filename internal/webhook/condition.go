package webhook

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// conditionCache compiles condition expressions once per distinct
// source text. Conditions see the parsed payload as `payload`.
type conditionCache struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

func newConditionCache() *conditionCache {
	return &conditionCache{programs: make(map[string]*vm.Program)}
}

func (c *conditionCache) evaluate(condition string, payload map[string]any) (bool, error) {
	program, err := c.compile(condition)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, map[string]any{"payload": payload})
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	fire, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return bool")
	}
	return fire, nil
}

func (c *conditionCache) compile(condition string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if program, ok := c.programs[condition]; ok {
		return program, nil
	}
	program, err := expr.Compile(condition, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	c.programs[condition] = program
	return program, nil
}
