// Package pipeline implements the inbound message flow: webhook payload
// unwrapping, ingestion with its short-circuits, debounce batching, and
// the batch orchestrator that produces and dispatches one reply per
// conversation burst.
package pipeline

import "time"

const (
	// DebounceWindow is how long a conversation's batch keeps absorbing
	// new messages after the latest arrival before it is answered.
	DebounceWindow = 15 * time.Second

	// LockStaleness is the age at which a batch lock left by a crashed
	// worker becomes reclaimable.
	LockStaleness = 120 * time.Second

	// SchedulePollBudget and SchedulePollCap bound the debounce wait
	// loop: at most SchedulePollBudget polls, sleeping at most
	// SchedulePollCap between them. The worker proceeds to the batch
	// even when the budget runs out.
	SchedulePollBudget = 25
	SchedulePollCap    = 2 * time.Second

	// MaxToolRounds bounds the LLM tool-calling loop per batch.
	MaxToolRounds = 3

	// HistoryLimit is how many trailing CRM history messages reach the
	// prompt.
	HistoryLimit = 10

	// SnapshotMaxBytes caps the serialized contact snapshot embedded in
	// the prompt.
	SnapshotMaxBytes = 3500
)
