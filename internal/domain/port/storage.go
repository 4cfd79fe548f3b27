package port

import (
	"context"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
)

// ObjectStore moves artifacts between local scratch files and blob storage.
// Uploads overwrite, so re-running a handler for the same chunk is safe.
type ObjectStore interface {
	Upload(ctx context.Context, ref entity.ArtifactRef, srcPath string) error
	Download(ctx context.Context, ref entity.ArtifactRef, destPath string) error
	Delete(ctx context.Context, ref entity.ArtifactRef) error

	// DeleteJobFiles removes every internal blob with the job's prefix and
	// returns how many were deleted.
	DeleteJobFiles(ctx context.Context, jobID uuid.UUID) (int, error)

	// FetchExternal downloads a client-provided URL (the upload-bucket
	// presigned URL) to a local file.
	FetchExternal(ctx context.Context, url string, destPath string) error

	// PresignedGetURL issues a read URL for a downloadable artifact.
	PresignedGetURL(ctx context.Context, ref entity.ArtifactRef, expiry time.Duration) (string, error)

	// PresignedPutURL issues a write URL into the uploads bucket.
	PresignedPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)

	// PresignedUploadGetURL issues a read URL for an uploaded object, handed
	// to the pipeline as the video or watermark source.
	PresignedUploadGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
