package catalog

import (
	"fmt"
	"strings"
)

// Kind routes a package to a library root and a ledger partition.
type Kind string

const (
	KindPort   Kind = "port"
	KindBottle Kind = "bottle"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindPort, KindBottle}

// ParseKind accepts "port"/"ports" and "bottle"/"bottles" case-insensitively.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "port", "ports":
		return KindPort, nil
	case "bottle", "bottles":
		return KindBottle, nil
	default:
		return "", fmt.Errorf("unknown package kind %q", value)
	}
}

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindPort || k == KindBottle
}

// Partition returns the ledger partition name for the kind.
func (k Kind) Partition() string {
	if k == KindBottle {
		return "bottles"
	}
	return "ports"
}

// DescriptorFile is the marker file whose presence inside an archive
// identifies the kind.
func (k Kind) DescriptorFile() string {
	if k == KindBottle {
		return "bottle.json"
	}
	return "port.json"
}

// ListFile is the catalog listing a source publishes for the kind.
func (k Kind) ListFile() string {
	if k == KindBottle {
		return "winecask.json"
	}
	return "ports.json"
}
