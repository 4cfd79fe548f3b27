package entity

import "github.com/google/uuid"

// ChunkTask tells a worker to process one chunk. The splitter produces one
// per chunk on both the watermark and thumbnail queues; delivery is
// at-least-once, so handlers treat duplicates as no-ops for counting.
type ChunkTask struct {
	JobID      uuid.UUID `json:"job_id"`
	ChunkIndex int       `json:"chunk_index"`
}

// StageDoneSignal is the fan-in trigger. Exactly one is produced per job and
// stage: by the conditional write that first observes the done count equal to
// the chunk total.
type StageDoneSignal struct {
	JobID         uuid.UUID `json:"job_id"`
	ExpectedCount int       `json:"expected_count"`
}
