package history

import "time"

// Kind classifies a journal entry.
type Kind string

const (
	KindTransfer  Kind = "transfer"
	KindInstall   Kind = "install"
	KindImageSync Kind = "image_sync"
)

// Entry is one journal row.
type Entry struct {
	ID            int64
	Kind          Kind
	Name          string
	PackageKind   string
	Status        string
	Detail        string
	Bytes         int64
	Fingerprint   string
	CorrelationID string
	CreatedAt     time.Time
}
