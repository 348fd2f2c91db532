// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// itemSchema is the CUE contract every evidence item must satisfy before it
// reaches the store. Definitions are closed, so unknown fields are rejected.
const itemSchema = `
#Verdict:  "pass" | "warn" | "fail"
#DiffType: "created" | "updated" | "unchanged" | "removed"

#PageRect: {
	page:   int & >=1
	x:      number
	y:      number
	width:  number & >=0
	height: number & >=0
}

#Anchor: {
	rect?:     #PageRect
	path?:     string & !=""
	document?: string
}

#Item: {
	urnId:              string & !=""
	quote:              string
	section?:           string
	pageNumber?:        int & >=1
	anchor?:            #Anchor
	sourceUrl?:         string
	sourceReliability?: number & >=0 & <=1
	diffType?:          #DiffType
	selfCheck?: {
		verdict: #Verdict
		note?:   string
	}
	metadata?: [string]: string
}
`

// Validator checks items against the CUE evidence schema.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	item cue.Value
}

// NewValidator compiles the evidence schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(itemSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile evidence schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Item"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Item: %w", err)
	}
	return &Validator{ctx: ctx, item: def}, nil
}

// Validate returns ErrInvalidItem wrapped with the CUE diagnostics when the
// item does not conform.
func (v *Validator) Validate(item Item) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(item)
	if err := val.Err(); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidItem, item.URN, err)
	}
	if err := v.item.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidItem, item.URN, err)
	}
	return nil
}

// ValidateSnapshot validates every item and rejects duplicate URNs.
func (v *Validator) ValidateSnapshot(s Snapshot) error {
	seen := make(map[string]struct{}, len(s.Items))
	for _, item := range s.Items {
		if _, dup := seen[item.URN]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateURN, item.URN)
		}
		seen[item.URN] = struct{}{}
		if err := v.Validate(item); err != nil {
			return err
		}
	}
	return nil
}
