package entity

// Stage identifies one phase of the pipeline. The stage graph below makes the
// fan-out/fan-in wiring explicit instead of leaving it implied by queue names
// scattered through the handlers.
type Stage int

const (
	StageSplit Stage = iota
	StageWatermarkChunk
	StageThumbnailChunk
	StageConcatVideo
	StageConcatThumbnails
)

// Queue names. The per-chunk queues carry ChunkTask, the done queues carry
// StageDoneSignal.
const (
	QueueWatermarkChunk = "watermark-chunk"
	QueueThumbnailChunk = "thumbnail-chunk"
	QueueWatermarkDone  = "watermark-done"
	QueueThumbnailDone  = "thumbnail-done"
)

func (s Stage) String() string {
	switch s {
	case StageSplit:
		return "split"
	case StageWatermarkChunk:
		return "watermark_chunk"
	case StageThumbnailChunk:
		return "thumbnail_chunk"
	case StageConcatVideo:
		return "concat_video"
	case StageConcatThumbnails:
		return "concat_thumbnails"
	}
	return "unknown"
}

// Queue is the queue that triggers the stage; the splitter is HTTP-triggered
// and has none.
func (s Stage) Queue() string {
	switch s {
	case StageWatermarkChunk:
		return QueueWatermarkChunk
	case StageThumbnailChunk:
		return QueueThumbnailChunk
	case StageConcatVideo:
		return QueueWatermarkDone
	case StageConcatThumbnails:
		return QueueThumbnailDone
	}
	return ""
}

// StageForQueue resolves which stage a queue triggers.
func StageForQueue(queue string) (Stage, bool) {
	switch queue {
	case QueueWatermarkChunk:
		return StageWatermarkChunk, true
	case QueueThumbnailChunk:
		return StageThumbnailChunk, true
	case QueueWatermarkDone:
		return StageConcatVideo, true
	case QueueThumbnailDone:
		return StageConcatThumbnails, true
	}
	return 0, false
}

// Successors are the stages this stage enqueues work for.
func (s Stage) Successors() []Stage {
	switch s {
	case StageSplit:
		return []Stage{StageWatermarkChunk, StageThumbnailChunk}
	case StageWatermarkChunk:
		return []Stage{StageConcatVideo}
	case StageThumbnailChunk:
		return []Stage{StageConcatThumbnails}
	}
	return nil
}

// FanIn reports whether the stage runs once per job behind a barrier rather
// than once per chunk.
func (s Stage) FanIn() bool {
	return s == StageConcatVideo || s == StageConcatThumbnails
}

// ChunkStage selects one of the two parallel per-chunk tracks when recording
// completion in the job record.
type ChunkStage int

const (
	ChunkStageWatermark ChunkStage = iota
	ChunkStageThumbnail
)

func (c ChunkStage) String() string {
	if c == ChunkStageWatermark {
		return "watermark"
	}
	return "thumbnail"
}

// DoneQueue is where the track's fan-in trigger is published.
func (c ChunkStage) DoneQueue() string {
	if c == ChunkStageWatermark {
		return QueueWatermarkDone
	}
	return QueueThumbnailDone
}
