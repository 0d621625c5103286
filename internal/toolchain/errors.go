package toolchain

import (
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// ErrToolNotFound is returned by Start when the executable cannot be resolved.
var ErrToolNotFound = stderrors.New("tool executable not found")

// ContextKeyTool is the ClassifiedError context key holding the tool name.
const ContextKeyTool = "tool"

func toolNotFound(tool string, cause error) error {
	return errors.ToolchainError(fmt.Sprintf("%s is not installed", tool)).
		WithCause(fmt.Errorf("%w: %w", ErrToolNotFound, cause)).
		WithContext(ContextKeyTool, tool).
		Build()
}

// IsToolNotFound reports whether err means the executable was missing.
func IsToolNotFound(err error) bool {
	return stderrors.Is(err, ErrToolNotFound)
}
