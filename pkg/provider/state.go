package provider

import "strings"

// StateMap translates a provider's raw status vocabulary into State.
// Lookups are case-insensitive. Anything not listed is still processing.
type StateMap map[string]State

func NewStateMap(completed, failed []string) StateMap {
	m := make(StateMap, len(completed)+len(failed))
	for _, s := range completed {
		m[strings.ToLower(s)] = StateCompleted
	}
	for _, s := range failed {
		m[strings.ToLower(s)] = StateFailed
	}
	return m
}

func (m StateMap) Map(raw string) State {
	if state, ok := m[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return state
	}
	return StateProcessing
}
