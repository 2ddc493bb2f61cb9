package pipeline

import (
	"fmt"
	"slices"
	"sort"
)

// graph is the dependency graph of stages. An edge runs from a stage to the
// stages that consume its output.
type graph struct {
	nodes    map[string]bool
	children map[string][]string // parent -> dependents
	parents  map[string][]string // child -> dependencies
}

func newGraph() *graph {
	return &graph{
		nodes:    make(map[string]bool),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

func (g *graph) addNode(id string) {
	g.nodes[id] = true
}

// addEdge records that child depends on parent.
func (g *graph) addEdge(parent, child string) error {
	if !g.nodes[parent] {
		return fmt.Errorf("stage %q depends on unknown stage %q", child, parent)
	}
	if !g.nodes[child] {
		return fmt.Errorf("unknown stage %q", child)
	}
	if parent == child {
		return fmt.Errorf("stage %q depends on itself", parent)
	}

	if !slices.Contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !slices.Contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

func (g *graph) sortedNodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cycle returns the stages forming a cycle, or nil.
func (g *graph) cycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	via := make(map[string]string)

	var found []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, child := range g.children[id] {
			if !visited[child] {
				via[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				found = []string{child}
				for curr := id; curr != child; curr = via[curr] {
					found = append([]string{curr}, found...)
				}
				found = append([]string{child}, found...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedNodes() {
		if !visited[id] && dfs(id) {
			return found
		}
	}
	return nil
}

// levels groups stages so that every stage of level N depends only on stages
// of earlier levels. Level 0 holds stages with no dependencies.
func (g *graph) levels() ([][]string, error) {
	if c := g.cycle(); c != nil {
		return nil, fmt.Errorf("cycle detected: %v", c)
	}

	assigned := make(map[string]int)
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, parent := range g.parents[id] {
			level = max(level, levelOf(parent)+1)
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range g.sortedNodes() {
		maxLevel = max(maxLevel, levelOf(id))
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.sortedNodes() {
		levels[assigned[id]] = append(levels[assigned[id]], id)
	}
	return levels, nil
}
