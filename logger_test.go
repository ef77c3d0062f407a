package compose

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/compose/logx"
)

func TestSetLoggerReachesSubPackages(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	SetLogger(custom)

	if Logger() != custom {
		t.Error("Logger() did not return the logger set via SetLogger")
	}
	// Sub-packages log through logx; the same instance must be visible
	// there.
	if logx.Logger() != custom {
		t.Error("SetLogger did not propagate to logx")
	}

	logx.Logger().Debug("probe", "key", "value")
	if !strings.Contains(buf.String(), "probe") {
		t.Errorf("expected captured output, got: %s", buf.String())
	}
}
