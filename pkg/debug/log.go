// Package debug routes the engine packages' debug hooks to a logger.
package debug

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/layout"
	"github.com/recera/cardboard/pkg/reactive"
	"github.com/recera/cardboard/pkg/workspace"
)

// EnableLogging sends debug output of the engine packages to logger at debug
// level
func EnableLogging(logger *slog.Logger) {
	logFn := func(args ...interface{}) {
		// Sprintln spaces every operand, Sprint only some
		logger.Debug(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	}

	layout.SetDebugLog(logFn)
	gesture.SetDebugLog(logFn)
	intent.SetDebugLog(logFn)
	reactive.SetDebugLog(logFn)
	canvas.SetDebugLog(logFn)
	workspace.SetDebugLog(logFn)
}

// DisableLogging removes every debug hook
func DisableLogging() {
	layout.SetDebugLog(nil)
	gesture.SetDebugLog(nil)
	intent.SetDebugLog(nil)
	reactive.SetDebugLog(nil)
	canvas.SetDebugLog(nil)
	workspace.SetDebugLog(nil)
}
