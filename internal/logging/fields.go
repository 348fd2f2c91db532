// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// URN adds an evidence item id.
func URN(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("urn_id", id)
	}
}

// DocumentID adds a structured document id.
func DocumentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("document_id", id)
	}
}

// Source adds a page-image source reference.
func Source(src string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("source", src)
	}
}

// Page adds a page number.
func Page(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("page", n)
	}
}

// Status adds a status value.
func Status(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", s)
	}
}

// Component names the emitting component.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Generation adds a request generation counter.
func Generation(g uint64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("generation", int64(g)) // #nosec G115 -- counters stay far below MaxInt64
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}
