package capture

import "github.com/google/uuid"

// ArtifactKind distinguishes the two media artifact types a session produces
type ArtifactKind string

const (
	// KindVideo is the single full-session video artifact
	KindVideo ArtifactKind = "video"

	// KindImage is a per-question snapshot artifact
	KindImage ArtifactKind = "image"
)

// UploadStatus tracks an artifact through its upload lifecycle
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadInFlight UploadStatus = "uploading"
	UploadDone     UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// MediaArtifact is an encoded media blob produced by the capture pipeline.
// Video artifacts are produced once per session; image artifacts at most
// once per answer.
type MediaArtifact struct {
	ID     string
	Kind   ArtifactKind
	MIME   string
	Data   []byte
	Status UploadStatus
}

// NewArtifact creates a pending artifact with a fresh identity
func NewArtifact(kind ArtifactKind, mime string, data []byte) MediaArtifact {
	return MediaArtifact{
		ID:     uuid.NewString(),
		Kind:   kind,
		MIME:   mime,
		Data:   data,
		Status: UploadPending,
	}
}
