package plan

import (
	"fmt"
)

// TopicGraphComplete is the terminal sentinel a session's current topic is set
// to once every topic in the graph has been covered.
const TopicGraphComplete = "interview_complete"

// Topic is one evaluable unit of the interview. Topics are created once by the
// Builder and never mutated afterwards.
type Topic struct {
	TopicID       string   `json:"topic_id"`
	PrimarySkill  string   `json:"primary_skill"`
	TopicName     string   `json:"topic_name"`
	Goal          string   `json:"goal"`
	Dependencies  []string `json:"dependencies"`
	ProbeKeywords []string `json:"probing_questions"`
}

// TopicGraph is the immutable interview plan: an ordered set of topics, their
// dependency edges, and an optional narrative backdrop. Declaration order is
// meaningful; topic advancement picks the first eligible topic in order.
type TopicGraph struct {
	Topics    []Topic `json:"topic_graph"`
	Narrative string  `json:"session_narrative"`
	Archetype string  `json:"archetype"`
}

// Topic returns the topic with the given id, or false when it does not exist.
func (g *TopicGraph) Topic(id string) (*Topic, bool) {
	for i := range g.Topics {
		if g.Topics[i].TopicID == id {
			return &g.Topics[i], true
		}
	}
	return nil, false
}

// FirstTopicID returns the id of the first topic whose dependencies are all
// satisfied with nothing covered yet. In a valid graph that is always the
// first topic with no dependencies.
func (g *TopicGraph) FirstTopicID() string {
	return g.NextTopicID("", nil)
}

// NextTopicID picks the next current topic: the first topic in declaration
// order that is not covered, not the current topic, and whose dependencies are
// a subset of the covered set. Returns TopicGraphComplete when no topic
// remains eligible.
func (g *TopicGraph) NextTopicID(currentID string, coveredIDs []string) string {
	covered := make(map[string]bool, len(coveredIDs))
	for _, id := range coveredIDs {
		covered[id] = true
	}

	for _, topic := range g.Topics {
		if covered[topic.TopicID] || topic.TopicID == currentID {
			continue
		}
		if dependenciesSatisfied(topic, covered) {
			return topic.TopicID
		}
	}

	return TopicGraphComplete
}

func dependenciesSatisfied(topic Topic, covered map[string]bool) bool {
	for _, dep := range topic.Dependencies {
		if !covered[dep] {
			return false
		}
	}
	return true
}

// Validate enforces the structural invariants of a generated graph: a
// non-empty topic list, unique ids, the four structural fields present on
// every topic, dependencies resolving within the graph, and an acyclic
// dependency relation. Violations wrap ErrContractViolation.
func (g *TopicGraph) Validate() error {
	if len(g.Topics) == 0 {
		return fmt.Errorf("%w: topic graph is empty", ErrContractViolation)
	}

	ids := make(map[string]bool, len(g.Topics))
	for _, topic := range g.Topics {
		if topic.TopicID == "" || topic.PrimarySkill == "" || topic.TopicName == "" || topic.Goal == "" {
			return fmt.Errorf("%w: topic %q is missing a structural field", ErrContractViolation, topic.TopicID)
		}
		if ids[topic.TopicID] {
			return fmt.Errorf("%w: duplicate topic id %q", ErrContractViolation, topic.TopicID)
		}
		ids[topic.TopicID] = true
	}

	for _, topic := range g.Topics {
		for _, dep := range topic.Dependencies {
			if !ids[dep] {
				return fmt.Errorf("%w: topic %q depends on unknown topic %q", ErrContractViolation, topic.TopicID, dep)
			}
			if dep == topic.TopicID {
				return fmt.Errorf("%w: topic %q depends on itself", ErrContractViolation, topic.TopicID)
			}
		}
	}

	if cycle := g.findCycle(); cycle != "" {
		return fmt.Errorf("%w: dependency cycle through topic %q", ErrContractViolation, cycle)
	}

	return nil
}

// findCycle runs a colored depth-first search over the dependency edges and
// returns a topic id on a cycle, or "" when the graph is acyclic.
func (g *TopicGraph) findCycle() string {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)

	deps := make(map[string][]string, len(g.Topics))
	for _, topic := range g.Topics {
		deps[topic.TopicID] = topic.Dependencies
	}

	color := make(map[string]int, len(g.Topics))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, dep := range deps[id] {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, topic := range g.Topics {
		if color[topic.TopicID] == white {
			if hit := visit(topic.TopicID); hit != "" {
				return hit
			}
		}
	}

	return ""
}
