package status

import "fmt"

// Status is the canonical order status. Locale-specific labels shown in the
// role screens always map 1:1 onto this set; the wire boundary is the only
// place where translation happens.
type Status string

const (
	Pending   Status = "pending"
	Preparing Status = "preparing"
	Ready     Status = "ready"
	Completed Status = "completed"
	Paid      Status = "paid"
	Cancelled Status = "cancelled"
)

// Info carries the display attributes of a status. All roles render from this
// one table instead of keeping their own status switches.
type Info struct {
	Label string
	Color string
}

var infos = map[Status]Info{
	Pending:   {Label: "En attente", Color: "#f5a623"},
	Preparing: {Label: "En préparation", Color: "#4a90d9"},
	Ready:     {Label: "Prête", Color: "#2e9e5b"},
	Completed: {Label: "Terminée", Color: "#6b7280"},
	Paid:      {Label: "Payée", Color: "#8e44ad"},
	Cancelled: {Label: "Annulée", Color: "#d0342c"},
}

// labels resolves both canonical and localized strings coming off the wire.
var labels = func() map[string]Status {
	m := make(map[string]Status, len(infos)*2)
	for s, info := range infos {
		m[string(s)] = s
		m[info.Label] = s
	}
	return m
}()

// Parse normalizes a status string from any supported form into the canonical
// enum. The backend speaks French labels on some endpoints and canonical
// strings on others.
func Parse(s string) (Status, error) {
	st, ok := labels[s]
	if !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

// Label returns the localized display string for the status.
func (s Status) Label() string {
	return infos[s].Label
}

// Color returns the display color for the status.
func (s Status) Color() string {
	return infos[s].Color
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	_, ok := infos[s]
	return ok
}

// Active reports whether an order in this status still holds its table.
func (s Status) Active() bool {
	switch s {
	case Paid, Completed, Cancelled:
		return false
	default:
		return s.Valid()
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case Paid, Cancelled:
		return true
	default:
		return false
	}
}

// transitions is the adjacency set of the order state machine. Anything not
// listed here is rejected before a write is attempted.
var transitions = map[Status][]Status{
	Pending:   {Preparing, Cancelled},
	Preparing: {Ready},
	Ready:     {Completed, Paid},
	Completed: {Paid},
}

// CanTransitionTo reports whether next is directly reachable from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
