// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// PanelStatus is the user-facing state of an evidence panel.
type PanelStatus string

const (
	PanelLoading        PanelStatus = "loading"
	PanelEmpty          PanelStatus = "empty"
	PanelReady          PanelStatus = "ready"
	PanelAnchorMismatch PanelStatus = "anchor-mismatch"
	PanelError          PanelStatus = "error"
)

const panelMachineID = "evidence-panel"

const (
	evPanelLoad     statekit.EventType = "LOAD"
	evPanelLoaded   statekit.EventType = "LOADED"
	evPanelEmpty    statekit.EventType = "LOADED_EMPTY"
	evPanelMismatch statekit.EventType = "ANCHOR_MISMATCH"
	evPanelResolved statekit.EventType = "ANCHOR_RESOLVED"
	evPanelFail     statekit.EventType = "FAIL"
)

const (
	statePanelLoading  = statekit.StateID(PanelLoading)
	statePanelEmpty    = statekit.StateID(PanelEmpty)
	statePanelReady    = statekit.StateID(PanelReady)
	statePanelMismatch = statekit.StateID(PanelAnchorMismatch)
	statePanelError    = statekit.StateID(PanelError)
)

// newPanelChart builds the panel statechart. Self transitions such as a
// second mismatch while already mismatched are accepted as no-ops.
func newPanelChart() (*statekit.MachineConfig[*record], error) {
	return statekit.NewMachine[*record](panelMachineID).
		WithInitial(statePanelLoading).
		WithContext(&record{}).
		WithAction("recordTransition", recordTransition).
		State(statePanelLoading).
		On(evPanelLoaded).Target(statePanelReady).Do("recordTransition").
		On(evPanelEmpty).Target(statePanelEmpty).Do("recordTransition").
		On(evPanelFail).Target(statePanelError).Do("recordTransition").
		On(evPanelLoad).Target(statePanelLoading).
		Done().
		State(statePanelEmpty).
		On(evPanelLoad).Target(statePanelLoading).Do("recordTransition").
		On(evPanelFail).Target(statePanelError).Do("recordTransition").
		Done().
		State(statePanelReady).
		On(evPanelMismatch).Target(statePanelMismatch).Do("recordTransition").
		On(evPanelResolved).Target(statePanelReady).
		On(evPanelLoad).Target(statePanelLoading).Do("recordTransition").
		On(evPanelFail).Target(statePanelError).Do("recordTransition").
		Done().
		State(statePanelMismatch).
		On(evPanelResolved).Target(statePanelReady).Do("recordTransition").
		On(evPanelMismatch).Target(statePanelMismatch).
		On(evPanelLoad).Target(statePanelLoading).Do("recordTransition").
		On(evPanelFail).Target(statePanelError).Do("recordTransition").
		Done().
		State(statePanelError).
		On(evPanelLoad).Target(statePanelLoading).Do("recordTransition").
		On(evPanelFail).Target(statePanelError).
		Done().
		Build()
}

// PanelMachine tracks PanelStatus. It is safe for concurrent use.
type PanelMachine struct {
	mu     sync.Mutex
	chart  *statekit.MachineConfig[*record]
	interp *statekit.Interpreter[*record]
	rec    *record
	err    string
}

// NewPanelMachine creates a started machine in the loading state.
func NewPanelMachine() (*PanelMachine, error) {
	chart, err := newPanelChart()
	if err != nil {
		return nil, fmt.Errorf("build panel statechart: %w", err)
	}
	rec := &record{}
	interp := statekit.NewInterpreter(chart)
	interp.UpdateContext(func(c **record) {
		*c = rec
	})
	interp.Start()
	return &PanelMachine{chart: chart, interp: interp, rec: rec}, nil
}

// Status returns the current status.
func (m *PanelMachine) Status() PanelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PanelStatus(m.interp.State().Value)
}

// Error returns the transport failure message while in the error state.
func (m *PanelMachine) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Reason returns the reason recorded on the last transition.
func (m *PanelMachine) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Reason
}

// Load enters loading, either for the first fetch or for a retry.
func (m *PanelMachine) Load() error {
	return m.send(evPanelLoad, "load")
}

// Loaded finishes a load with n evidence items.
func (m *PanelMachine) Loaded(n int) error {
	if n == 0 {
		return m.send(evPanelEmpty, "no evidence")
	}
	return m.send(evPanelLoaded, fmt.Sprintf("%d items", n))
}

// AnchorMismatch records that the selected item's anchor did not resolve.
func (m *PanelMachine) AnchorMismatch(reason string) error {
	return m.send(evPanelMismatch, reason)
}

// AnchorResolved records a successful resolution.
func (m *PanelMachine) AnchorResolved() error {
	return m.send(evPanelResolved, "anchor resolved")
}

// Fail moves to error. It is accepted from every state.
func (m *PanelMachine) Fail(cause error) error {
	msg := "evidence fetch failed"
	if cause != nil {
		msg = cause.Error()
	}
	return m.send(evPanelFail, msg)
}

func (m *PanelMachine) send(ev statekit.EventType, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.interp.State().Value
	to, ok := target(m.chart, from, ev)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}

	if ev == evPanelFail {
		m.err = reason
	} else if to != statePanelError {
		m.err = ""
	}

	if to == from {
		return nil
	}
	m.interp.Send(statekit.Event{Type: ev, Payload: transitionPayload{Reason: reason}})
	return nil
}
