package analyzer

import "fmt"

// Variants lists the checkers NewChecker knows, in the order "all" runs them.
var Variants = []string{"range", "coverage", "degenerate", "coincident"}

// NewChecker creates a checker based on the specified variant
func NewChecker(variant string) (Checker, error) {
	switch variant {
	case "range":
		return RangeChecker{}, nil
	case "coverage":
		return NewCoverageChecker(), nil
	case "degenerate":
		return DegenerateChecker{}, nil
	case "coincident":
		return CoincidentChecker{}, nil
	case "nodes":
		return nil, fmt.Errorf("nodes checker needs model outlines, use NewNodeChecker")
	case "all", "":
		var m Multi
		for _, v := range Variants {
			c, _ := NewChecker(v)
			m = append(m, c)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown checker variant: %s", variant)
	}
}
