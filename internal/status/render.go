// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// RenderStatus is the state of the page-image rendering pipeline.
type RenderStatus string

const (
	RenderIdle    RenderStatus = "idle"
	RenderLoading RenderStatus = "loading"
	RenderReady   RenderStatus = "ready"
	RenderError   RenderStatus = "error"
)

const renderMachineID = "page-render"

const (
	evRenderLoad     statekit.EventType = "LOAD"
	evRenderRendered statekit.EventType = "RENDERED"
	evRenderFail     statekit.EventType = "FAIL"
	evRenderReset    statekit.EventType = "RESET"
)

const (
	stateRenderIdle    = statekit.StateID(RenderIdle)
	stateRenderLoading = statekit.StateID(RenderLoading)
	stateRenderReady   = statekit.StateID(RenderReady)
	stateRenderError   = statekit.StateID(RenderError)
)

// newRenderChart builds the render statechart. A LOAD while already loading
// is a supersede: the state stays loading and the caller discards the older
// request.
func newRenderChart() (*statekit.MachineConfig[*record], error) {
	return statekit.NewMachine[*record](renderMachineID).
		WithInitial(stateRenderIdle).
		WithContext(&record{}).
		WithAction("recordTransition", recordTransition).
		State(stateRenderIdle).
		On(evRenderLoad).Target(stateRenderLoading).Do("recordTransition").
		On(evRenderReset).Target(stateRenderIdle).
		Done().
		State(stateRenderLoading).
		On(evRenderLoad).Target(stateRenderLoading).
		On(evRenderRendered).Target(stateRenderReady).Do("recordTransition").
		On(evRenderFail).Target(stateRenderError).Do("recordTransition").
		On(evRenderReset).Target(stateRenderIdle).Do("recordTransition").
		Done().
		State(stateRenderReady).
		On(evRenderLoad).Target(stateRenderLoading).Do("recordTransition").
		On(evRenderReset).Target(stateRenderIdle).Do("recordTransition").
		Done().
		State(stateRenderError).
		On(evRenderLoad).Target(stateRenderLoading).Do("recordTransition").
		On(evRenderReset).Target(stateRenderIdle).Do("recordTransition").
		Done().
		Build()
}

// RenderMachine tracks RenderStatus and the human-readable failure message.
// The message is cleared whenever the machine leaves the error state.
type RenderMachine struct {
	mu     sync.Mutex
	chart  *statekit.MachineConfig[*record]
	interp *statekit.Interpreter[*record]
	rec    *record
	err    string
}

// NewRenderMachine creates a started machine in the idle state.
func NewRenderMachine() (*RenderMachine, error) {
	chart, err := newRenderChart()
	if err != nil {
		return nil, fmt.Errorf("build render statechart: %w", err)
	}
	rec := &record{}
	interp := statekit.NewInterpreter(chart)
	interp.UpdateContext(func(c **record) {
		*c = rec
	})
	interp.Start()
	return &RenderMachine{chart: chart, interp: interp, rec: rec}, nil
}

// Status returns the current status.
func (m *RenderMachine) Status() RenderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return RenderStatus(m.interp.State().Value)
}

// Error returns the failure message; empty unless in the error state.
func (m *RenderMachine) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Transition moves the machine to status. message is kept only for the
// error status.
func (m *RenderMachine) Transition(to RenderStatus, message string) error {
	var ev statekit.EventType
	switch to {
	case RenderIdle:
		ev = evRenderReset
	case RenderLoading:
		ev = evRenderLoad
	case RenderReady:
		ev = evRenderRendered
	case RenderError:
		ev = evRenderFail
	default:
		return fmt.Errorf("%w: unknown render status %q", ErrInvalidTransition, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.interp.State().Value
	to, ok := target(m.chart, from, ev)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}

	if to == stateRenderError {
		if message == "" {
			message = "page render failed"
		}
		m.err = message
	} else {
		m.err = ""
	}

	if to == from {
		return nil
	}
	m.interp.Send(statekit.Event{Type: ev, Payload: transitionPayload{Reason: message}})
	return nil
}
