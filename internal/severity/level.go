package severity

import (
	"fmt"
	"strings"
)

// Level is the closed set of severities a node, badge or diagnostic can carry.
// The zero value is Unclassified.
type Level int

const (
	Unclassified Level = iota
	None
	Low
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unclassified"
	}
}

// ParseLevel accepts the lowercase names produced by String, case-insensitively.
// The empty string parses as None.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "unclassified":
		return Unclassified, nil
	default:
		return Unclassified, fmt.Errorf("unknown severity %q", s)
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Elevated reports whether the level changes a node's styling.
func (l Level) Elevated() bool {
	return l == Medium || l == High
}

// Border is the hex border/edge color for elevated levels, empty otherwise.
func (l Level) Border() string {
	switch l {
	case High:
		return "#dc2626"
	case Medium:
		return "#ea580c"
	default:
		return ""
	}
}

// Fill is the hex background color for elevated levels, empty otherwise.
func (l Level) Fill() string {
	switch l {
	case High:
		return "#fee2e2"
	case Medium:
		return "#ffedd5"
	default:
		return ""
	}
}

// Minimap is the overview color for elevated levels, empty otherwise.
func (l Level) Minimap() string {
	switch l {
	case High:
		return "#fca5a5"
	case Medium:
		return "#fdba74"
	default:
		return ""
	}
}
