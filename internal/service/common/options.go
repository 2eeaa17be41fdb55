//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"

	"github.com/oshokin/building-safety/internal/logger"
)

// ApplyLogLevel sets the process log level. The command-line flag wins over
// the configuration file; an empty pair keeps the current level.
func ApplyLogLevel(flag, configured string) error {
	level := flag
	if level == "" {
		level = configured
	}

	if level == "" {
		return nil
	}

	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	return nil
}
