package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 2

// Checkpoint is the persisted snapshot of a run after one node.
// It contains everything needed to resume, including loop counters.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Visits counts how many times each node has started in this run.
	// Resume restores it so loop limits span interruptions.
	Visits map[string]int `json:"visits,omitempty"`

	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint with the given parameters.
// State must already be JSON-serialized.
func New(runID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
	}
}

// WithVisits records a copy of the per-node visit counters.
func (c *Checkpoint) WithVisits(visits map[string]int) *Checkpoint {
	if len(visits) == 0 {
		c.Visits = nil
		return c
	}
	c.Visits = make(map[string]int, len(visits))
	for id, n := range visits {
		c.Visits[id] = n
	}
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// Reentries returns how many times nodeID was executed after its first visit.
func (c *Checkpoint) Reentries(nodeID string) int {
	if n := c.Visits[nodeID]; n > 1 {
		return n - 1
	}
	return 0
}
