package questionnaire

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// GraphError reports a malformed question forest: a parent reference outside
// the questionnaire, a conditional question without a trigger value, or a
// cycle in the parent chain. It is fatal for the questionnaire until the
// structure is fixed; activation and submission are both blocked by it.
type GraphError struct {
	QuestionID uuid.UUID
	Reason     string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("question graph invalid at %s: %s", e.QuestionID, e.Reason)
}

// RawAnswers is the raw submitted value per question, exactly as it arrived.
// Branch evaluation works on this map, never on cleaned values, so a failed
// validation on a parent cannot suppress the activation check of its children.
type RawAnswers map[uuid.UUID]string

// Graph is the immutable forest of one questionnaire's questions, addressable
// by ID, with children in sibling order. It is cheap to build and is derived
// entirely from persisted state, so concurrent readers can share or recompute
// it freely.
type Graph struct {
	byID     map[uuid.UUID]*Question
	children map[uuid.UUID][]*Question
	roots    []*Question
}

// BuildGraph constructs the forest from a flat question list. It fails with
// *GraphError when a parent reference points outside the questionnaire, a
// conditional question lacks a trigger value, or the parent chain contains a
// cycle.
func BuildGraph(questions []*Question) (*Graph, error) {
	byID := make(map[uuid.UUID]*Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for _, q := range questions {
		if q.ParentID == nil {
			continue
		}
		if _, ok := byID[*q.ParentID]; !ok {
			return nil, &GraphError{QuestionID: q.ID, Reason: "parent question is not part of the questionnaire"}
		}
		if q.TriggerValue == nil || *q.TriggerValue == "" {
			return nil, &GraphError{QuestionID: q.ID, Reason: "conditional question has no trigger value"}
		}
	}

	// Parent pointers are editable after creation, so a cycle can have been
	// introduced post-hoc. Walk each parent chain with a step bound of the
	// graph size; exceeding it means the chain never reaches a root.
	for _, q := range questions {
		steps := 0
		cur := q
		for cur.ParentID != nil {
			steps++
			if steps > len(questions) {
				return nil, &GraphError{QuestionID: q.ID, Reason: "cycle detected in parent chain"}
			}
			cur = byID[*cur.ParentID]
		}
	}

	sorted := make([]*Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	g := &Graph{
		byID:     byID,
		children: make(map[uuid.UUID][]*Question),
	}
	for _, q := range sorted {
		if q.ParentID == nil {
			g.roots = append(g.roots, q)
			continue
		}
		g.children[*q.ParentID] = append(g.children[*q.ParentID], q)
	}

	return g, nil
}

// Question returns the question with the given ID, if it is part of the
// forest.
func (g *Graph) Question(id uuid.UUID) (*Question, bool) {
	q, ok := g.byID[id]
	return q, ok
}

// Len returns the number of questions in the forest.
func (g *Graph) Len() int { return len(g.byID) }

// Roots returns the questions with no parent, in sibling order.
func (g *Graph) Roots() []*Question { return g.roots }

// Children returns the direct dependents of a question, in sibling order.
func (g *Graph) Children(id uuid.UUID) []*Question { return g.children[id] }

// Parent returns the parent of a question, or nil for roots.
func (g *Graph) Parent(id uuid.UUID) *Question {
	q, ok := g.byID[id]
	if !ok || q.ParentID == nil {
		return nil
	}
	return g.byID[*q.ParentID]
}

// Ordered returns every question in depth-first pre-order, siblings in
// sibling order. This is the order a rendered form presents them in.
func (g *Graph) Ordered() []*Question {
	out := make([]*Question, 0, len(g.byID))
	var walk func(q *Question)
	walk = func(q *Question) {
		out = append(out, q)
		for _, child := range g.children[q.ID] {
			walk(child)
		}
	}
	for _, root := range g.roots {
		walk(root)
	}
	return out
}

// DisplayNumbers assigns the presentation numbering: roots are numbered
// 1..N contiguously regardless of subtree size, and each child is numbered
// <parent>.<1-based index among its siblings>, recursively at any depth.
// Sibling branches with different trigger values are numbered side by side
// even though at most one is ever shown for a given answer.
func (g *Graph) DisplayNumbers() map[uuid.UUID]string {
	numbers := make(map[uuid.UUID]string, len(g.byID))
	var walk func(q *Question, number string)
	walk = func(q *Question, number string) {
		numbers[q.ID] = number
		for i, child := range g.children[q.ID] {
			walk(child, fmt.Sprintf("%s.%d", number, i+1))
		}
	}
	for i, root := range g.roots {
		walk(root, fmt.Sprintf("%d", i+1))
	}
	return numbers
}

// IsActive reports whether a question would be displayed given the raw
// submitted answers. A root is always active; a conditional question is
// active iff its parent's raw value equals the trigger value and the parent
// itself is active. Activation depends only on the question's ancestor
// chain, never on its own value or its siblings'.
func (g *Graph) IsActive(id uuid.UUID, raw RawAnswers) bool {
	q, ok := g.byID[id]
	if !ok {
		return false
	}
	if q.ParentID == nil {
		return true
	}
	if raw[*q.ParentID] != *q.TriggerValue {
		return false
	}
	return g.IsActive(*q.ParentID, raw)
}

// ActiveSet returns the IDs of every question that would be displayed given
// the raw submitted answers.
func (g *Graph) ActiveSet(raw RawAnswers) map[uuid.UUID]bool {
	active := make(map[uuid.UUID]bool, len(g.byID))
	for id := range g.byID {
		if g.IsActive(id, raw) {
			active[id] = true
		}
	}
	return active
}
