package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/opsforge/taskkit/pkg/util"
)

// ErrCircularDependency is raised when a dependency cycle prevents a
// complete topological ordering
var ErrCircularDependency = errors.New(
	"circular dependency detected among steps")

// ExecutionOrder returns all steps ordered so that every step appears
// after its dependencies, using Kahn's algorithm. Steps that become
// ready at the same time are taken in ascending name order, making the
// result deterministic for a given definition
func (d *Definition) ExecutionOrder() ([]*Step, error) {
	inDegree := make(map[string]int, len(d.Steps))
	dependents := make(map[string][]string, len(d.Steps))
	stepMap := make(map[string]*Step, len(d.Steps))

	for _, s := range d.Steps {
		stepMap[s.Name] = s
		inDegree[s.Name] = len(s.Depends)
		for _, dep := range s.Depends {
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	slices.Sort(queue)

	result := make([]*Step, 0, len(d.Steps))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, stepMap[name])

		var nextReady []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				nextReady = append(nextReady, dep)
			}
		}
		slices.Sort(nextReady)
		queue = append(queue, nextReady...)
	}

	if len(result) != len(d.Steps) {
		processed := util.Set[string]{}
		for _, s := range result {
			processed.Add(s.Name)
		}
		var remaining []string
		for _, s := range d.Steps {
			if !processed.Contains(s.Name) {
				remaining = append(remaining, s.Name)
			}
		}
		return nil, fmt.Errorf(
			"%w: %s", ErrCircularDependency, strings.Join(remaining, ", "),
		)
	}

	return result, nil
}
