package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// ArtifactType is the closed set of blob kinds the pipeline reads and writes.
// Each type knows its file extension, whether a chunk index is part of its
// name, and whether it lives in the downloads bucket or the internal one.
type ArtifactType int

const (
	ArtifactWatermark ArtifactType = iota
	ArtifactChunkOriginal
	ArtifactChunkModified
	ArtifactThumbnail
	ArtifactOutputVideo
	ArtifactOutputThumbnail
	ArtifactAudio
)

var artifactNames = map[ArtifactType]string{
	ArtifactWatermark:       "watermark",
	ArtifactChunkOriginal:   "video_chunk_orig",
	ArtifactChunkModified:   "video_chunk_mod",
	ArtifactThumbnail:       "thumbnail",
	ArtifactOutputVideo:     "output_video",
	ArtifactOutputThumbnail: "output_thumbnail",
	ArtifactAudio:           "audio",
}

func (t ArtifactType) String() string {
	name, ok := artifactNames[t]
	if !ok {
		return fmt.Sprintf("ArtifactType(%d)", int(t))
	}
	return name
}

// Ext returns the file extension including the dot.
func (t ArtifactType) Ext() string {
	switch t {
	case ArtifactWatermark, ArtifactThumbnail, ArtifactOutputThumbnail:
		return ".jpg"
	default:
		return ".mp4"
	}
}

// RequiresIndex reports whether the artifact is per-chunk and needs an index
// in its object key.
func (t ArtifactType) RequiresIndex() bool {
	switch t {
	case ArtifactChunkOriginal, ArtifactChunkModified, ArtifactThumbnail:
		return true
	default:
		return false
	}
}

// Downloadable reports whether the artifact is a final output served to the
// client from the downloads bucket.
func (t ArtifactType) Downloadable() bool {
	return t == ArtifactOutputVideo || t == ArtifactOutputThumbnail
}

// ParseArtifactType maps the wire name ("output_video", ...) back to the enum.
func ParseArtifactType(s string) (ArtifactType, error) {
	for t, name := range artifactNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown artifact type %q", ErrInvalidInput, s)
}

// ArtifactRef identifies one blob of one job. Index is ignored for types that
// do not require it.
type ArtifactRef struct {
	JobID uuid.UUID
	Type  ArtifactType
	Index int
}

func NewArtifactRef(jobID uuid.UUID, t ArtifactType) ArtifactRef {
	return ArtifactRef{JobID: jobID, Type: t, Index: -1}
}

func NewChunkRef(jobID uuid.UUID, t ArtifactType, index int) ArtifactRef {
	return ArtifactRef{JobID: jobID, Type: t, Index: index}
}

// Key builds the object name: {job_id}_{type}[_{index}].{ext}.
func (r ArtifactRef) Key() (string, error) {
	if r.JobID == uuid.Nil {
		return "", fmt.Errorf("%w: artifact ref without job id", ErrInvalidInput)
	}
	if _, ok := artifactNames[r.Type]; !ok {
		return "", fmt.Errorf("%w: artifact ref with invalid type %d", ErrInvalidInput, int(r.Type))
	}
	if r.Type.RequiresIndex() {
		if r.Index < 0 {
			return "", fmt.Errorf("%w: artifact type %s needs an index", ErrInvalidInput, r.Type)
		}
		return fmt.Sprintf("%s_%s_%d%s", r.JobID, r.Type, r.Index, r.Type.Ext()), nil
	}
	return fmt.Sprintf("%s_%s%s", r.JobID, r.Type, r.Type.Ext()), nil
}
