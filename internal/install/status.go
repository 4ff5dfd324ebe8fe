package install

import (
	"errors"

	"pharos/internal/services"
)

// Status is the outcome code of one archive install. StatusOK is zero.
type Status int

const (
	StatusOK Status = iota
	StatusBadArchive
	StatusMissingDescriptor
	StatusNotFound
	StatusExtractFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadArchive:
		return "bad_archive"
	case StatusMissingDescriptor:
		return "missing_descriptor"
	case StatusNotFound:
		return "not_found"
	case StatusExtractFailed:
		return "extract_failed"
	default:
		return "unknown"
	}
}

// StatusOf classifies an install error.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, services.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, services.ErrMissingDescriptor):
		return StatusMissingDescriptor
	case errors.Is(err, services.ErrBadArchive):
		return StatusBadArchive
	default:
		return StatusExtractFailed
	}
}
