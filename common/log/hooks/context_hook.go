// Package hooks holds logrus hooks shared by herd binaries.
package hooks

import (
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileLineField is the entry field the context hook fills.
const FileLineField = "file:line"

type contextHook struct {
	trimPrefix string
}

// NewContextHook adds the caller's "file:line" to every entry, trimmed to the module path.
func NewContextHook() contextHook {
	return contextHook{trimPrefix: "herd/"}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	entry.Data[FileLineField] = hook.caller(string(debug.Stack()))
	return nil
}

// caller walks a goroutine stack dump and returns the first frame outside logrus and this hook.
func (hook contextHook) caller(stack string) string {
	lines := strings.Split(stack, "\n")
	foundLoggerBlock := false
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, ".go:") {
			continue
		}
		if strings.Contains(line, "sirupsen/logrus") || strings.Contains(line, "context_hook.go:") ||
			strings.Contains(line, "runtime/debug") {
			foundLoggerBlock = true
			continue
		}
		if !foundLoggerBlock {
			continue
		}
		ctx := strings.Split(line, hook.trimPrefix)
		loc := ctx[len(ctx)-1]
		// drop the " +0x1f" pc offset
		if idx := strings.Index(loc, " "); idx > 0 {
			loc = loc[:idx]
		}
		return loc
	}
	return ""
}
