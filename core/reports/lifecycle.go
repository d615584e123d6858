package reports

// Report statuses. PENDING is the only status a submission can start
// in; RESOLVED and DISMISSED are terminal.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
	StatusDismissed  = "DISMISSED"
)

// Report types accepted at submission.
const (
	TypeTheft         = "THEFT"
	TypeAssault       = "ASSAULT"
	TypeVandalism     = "VANDALISM"
	TypeFraud         = "FRAUD"
	TypeHarassment    = "HARASSMENT"
	TypeCorruption    = "CORRUPTION"
	TypeMissingPerson = "MISSING_PERSON"
	TypeOther         = "OTHER"
)

// Priorities an investigator can assign.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// transitions is the full lifecycle graph. A status missing from the
// map is terminal.
var transitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusDismissed},
	StatusInProgress: {StatusResolved, StatusDismissed},
}

var knownStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusResolved:   true,
	StatusDismissed:  true,
}

var knownTypes = map[string]bool{
	TypeTheft:         true,
	TypeAssault:       true,
	TypeVandalism:     true,
	TypeFraud:         true,
	TypeHarassment:    true,
	TypeCorruption:    true,
	TypeMissingPerson: true,
	TypeOther:         true,
}

var knownPriorities = map[string]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

func ValidStatus(s string) bool   { return knownStatuses[s] }
func ValidType(t string) bool     { return knownTypes[t] }
func ValidPriority(p string) bool { return knownPriorities[p] }

// CanTransition reports whether from -> to is an allowed lifecycle
// step. Self-transitions and moves out of a terminal status are not.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func IsTerminal(s string) bool {
	return knownStatuses[s] && len(transitions[s]) == 0
}
