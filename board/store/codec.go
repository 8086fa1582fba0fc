// ABOUTME: Snapshot codec: a versioned JSON envelope around a workspace.
// ABOUTME: Decoding normalizes the workspace so hand-edited snapshots cannot break list totals, card list ids, or single ownership of cards.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389-research/funnel/board/core"
)

// FormatVersion is written into every snapshot envelope.
const FormatVersion = 1

type snapshotJSON struct {
	Format    int             `json:"format"`
	SavedAt   time.Time       `json:"savedAt"`
	Workspace *core.Workspace `json:"workspace"`
}

// EncodeWorkspace serializes ws into a snapshot envelope.
func EncodeWorkspace(ws *core.Workspace) ([]byte, error) {
	if ws == nil {
		return nil, fmt.Errorf("encode snapshot: nil workspace")
	}
	data, err := json.MarshalIndent(snapshotJSON{
		Format:    FormatVersion,
		SavedAt:   time.Now().UTC(),
		Workspace: ws,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeWorkspace parses a snapshot envelope and normalizes the workspace.
func DecodeWorkspace(data []byte) (*core.Workspace, error) {
	var j snapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if j.Format > FormatVersion {
		return nil, fmt.Errorf("snapshot format %d is newer than supported %d", j.Format, FormatVersion)
	}
	if j.Workspace == nil {
		return nil, fmt.Errorf("parse snapshot: missing workspace")
	}
	j.Workspace.Normalize()
	return j.Workspace, nil
}
