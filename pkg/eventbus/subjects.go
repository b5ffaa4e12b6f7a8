package eventbus

import (
	"fmt"
	"strings"
)

const (
	// SubjectPrefix is the canonical prefix for agent events.
	SubjectPrefix = "hyperagent.v1"
)

// Domain groups agent event types.
type Domain string

const (
	DomainCycle Domain = "cycle"
	DomainGoal  Domain = "goal"
)

// Event types published by the engine.
const (
	EventCycleCompleted = "agent.cycle.completed"
	EventCycleFailed    = "agent.cycle.failed"
	EventImpasse        = "agent.impasse"
	EventGoalCompleted  = "agent.goal.completed"
	EventGoalFailed     = "agent.goal.failed"
)

// Subject returns the canonical subject for an event:
// hyperagent.v1.<domain>.<goal>.<event>. Dots inside the event type are
// replaced so the subject always has five segments.
func Subject(domain Domain, goalKey, eventType string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, sanitizeSegment(string(domain)), sanitizeSegment(goalKey), sanitizeSegment(eventType))
}

// GoalWildcardSubject matches every event about one goal.
func GoalWildcardSubject(goalKey string) string {
	return fmt.Sprintf("%s.*.%s.*", SubjectPrefix, sanitizeSegment(goalKey))
}

// DomainWildcardSubject returns canonical wildcard subject for a domain.
func DomainWildcardSubject(domain Domain) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sanitizeSegment(string(domain)))
}

// AllSubjects matches every agent event.
func AllSubjects() string {
	return SubjectPrefix + ".>"
}

func sanitizeSegment(value string) string {
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, ".", "_")
}
