package models

// Session is the logical authenticated state. It lives for one process and
// is never persisted.
type Session struct {
	Authenticated bool `json:"authenticated"`
}

// PendingFile is the trade-history file waiting to be uploaded.
type PendingFile struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// Size returns the file size in bytes.
func (f PendingFile) Size() int {
	return len(f.Data)
}

// UploadKind is the outcome tag of the last upload.
type UploadKind string

const (
	UploadNone    UploadKind = "none"
	UploadSuccess UploadKind = "success"
	UploadFailure UploadKind = "failure"
)

// UploadStatus is set by the upload pipeline only.
type UploadStatus struct {
	Kind    UploadKind `json:"kind"`
	Message string     `json:"message,omitempty"`
}

func (s UploadStatus) IsNone() bool {
	return s.Kind == "" || s.Kind == UploadNone
}
