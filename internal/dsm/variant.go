package dsm

import (
	"fmt"
	"strings"
)

type Variant int

const (
	AP Variant = iota
	CP
	CA
)

func (v Variant) String() string {
	switch v {
	case AP:
		return "AP"
	case CP:
		return "CP"
	case CA:
		return "CA"
	default:
		return "Unknown"
	}
}

// Description is the long name used in reports.
func (v Variant) Description() string {
	switch v {
	case AP:
		return "Availability & Partition Tolerance"
	case CP:
		return "Consistency & Partition Tolerance"
	case CA:
		return "Consistency & Availability"
	default:
		return "Unknown"
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AP":
		return AP, nil
	case "CP":
		return CP, nil
	case "CA":
		return CA, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}
