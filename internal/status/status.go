// SPDX-License-Identifier: Apache-2.0

// Package status provides the two independent state machines that drive
// evidence panel messaging: the panel-level PanelStatus and the page-image
// RenderStatus. The host composes them; neither knows about the other.
package status

import (
	"errors"

	"github.com/felixgeelhaar/statekit"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current state. The machine state is left untouched.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitionPayload carries the reason for a transition into the actions.
type transitionPayload struct {
	Reason string
}

// record is the statekit context shared by both machines.
type record struct {
	Reason      string
	Transitions int
}

// recordTransition stores the reason of the last transition.
// In statekit, actions receive a pointer to the context. Since our context is
// *record, actions receive **record.
func recordTransition(ctx **record, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	r := *ctx
	if payload, ok := event.Payload.(transitionPayload); ok {
		r.Reason = payload.Reason
	} else {
		r.Reason = string(event.Type)
	}
	r.Transitions++
}

// target reports where ev leads from the given state according to the built
// chart. The chart is the only definition of accepted events, so invalid
// events are rejected before they reach the interpreter.
func target(chart *statekit.MachineConfig[*record], from statekit.StateID, ev statekit.EventType) (statekit.StateID, bool) {
	state, ok := chart.States[from]
	if !ok {
		return "", false
	}
	for _, t := range state.Transitions {
		if t.Event == ev {
			return t.Target, true
		}
	}
	return "", false
}
