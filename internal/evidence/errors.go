// SPDX-License-Identifier: Apache-2.0

package evidence

import "errors"

var (
	// ErrUnsupportedFormat is returned when no registered parser accepts a payload.
	ErrUnsupportedFormat = errors.New("unsupported evidence format")

	// ErrInvalidItem is returned when an item violates the evidence schema.
	ErrInvalidItem = errors.New("invalid evidence item")

	// ErrDuplicateURN is returned when a snapshot lists the same urnId twice.
	ErrDuplicateURN = errors.New("duplicate urnId in snapshot")
)
