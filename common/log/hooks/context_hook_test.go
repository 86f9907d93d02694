package hooks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestContextHookAddsFileLine(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.AddHook(NewContextHook())
	logger.Info("hello")

	if !strings.Contains(buf.String(), "context_hook_test.go:") {
		t.Errorf("expected caller location in %q", buf.String())
	}
}

func TestCallerTrimsModulePath(t *testing.T) {
	stack := strings.Join([]string{
		"goroutine 1 [running]:",
		"runtime/debug.Stack(0x1, 0x2)",
		"\t/usr/local/go/src/runtime/debug/stack.go:24 +0x9d",
		"github.com/twitter/herd/common/log/hooks.contextHook.Fire(...)",
		"\t/go/src/github.com/twitter/herd/common/log/hooks/context_hook.go:29 +0x3a",
		"github.com/sirupsen/logrus.(*Entry).log(...)",
		"\t/go/pkg/mod/github.com/sirupsen/logrus@v1.4.2/entry.go:230 +0x1a",
		"github.com/twitter/herd/scheduler/server.(*SchedulingService).SubmitJob(...)",
		"\t/go/src/github.com/twitter/herd/scheduler/server/service.go:120 +0x55",
	}, "\n")
	got := NewContextHook().caller(stack)
	if got != "scheduler/server/service.go:120" {
		t.Errorf("unexpected caller %q", got)
	}
}
