// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/finlens/evidence-mcp/internal/evidence"
)

// decodeSnapshot accepts either a snapshot envelope ({"items": [...]}) or a
// bare list of items. The source ID is used as the snapshot ID when the
// envelope does not carry one.
func decodeSnapshot(data []byte, sourceID string) (evidence.Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return evidence.Snapshot{}, fmt.Errorf("empty evidence payload")
	}

	var snapshot evidence.Snapshot
	if data[0] == '[' {
		if err := json.Unmarshal(data, &snapshot.Items); err != nil {
			return evidence.Snapshot{}, fmt.Errorf("failed to unmarshal item list: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return evidence.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	if snapshot.ID == "" {
		snapshot.ID = sourceID
	}
	if snapshot.Items == nil {
		snapshot.Items = []evidence.Item{}
	}
	return snapshot, nil
}
