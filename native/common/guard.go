package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a PauseView over a fixed set of module names, typically
// loaded from configuration.
type StaticPauses map[string]bool

// NewStaticPauses marks each named module as paused.
func NewStaticPauses(modules ...string) StaticPauses {
	out := make(StaticPauses, len(modules))
	for _, module := range modules {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			out[trimmed] = true
		}
	}
	return out
}

func (s StaticPauses) IsPaused(module string) bool {
	return s[strings.ToLower(strings.TrimSpace(module))]
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
