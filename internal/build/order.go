package build

import (
	"fmt"
)

// Order returns tasks sorted so that a task producing a file runs before
// any task consuming it. Independent tasks keep their relative order.
func Order(tasks []*Task) ([]*Task, error) {
	producer := make(map[string]int, len(tasks))
	for i, t := range tasks {
		for _, o := range t.Outputs {
			producer[o.Path()] = i
		}
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, in := range t.Inputs {
			p, ok := producer[in.Path()]
			if !ok || p == i {
				continue
			}
			dependents[p] = append(dependents[p], i)
			indegree[i]++
		}
	}

	ordered := make([]*Task, 0, len(tasks))
	done := make([]bool, len(tasks))
	for len(ordered) < len(tasks) {
		next := -1
		for i := range tasks {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("dependency cycle among %d tasks", len(tasks)-len(ordered))
		}
		done[next] = true
		ordered = append(ordered, tasks[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return ordered, nil
}
