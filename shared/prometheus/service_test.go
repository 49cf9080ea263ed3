package prometheus

import (
	"testing"

	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	hook := logTest.NewGlobal()
	prometheusService := NewPrometheusService("127.0.0.1:0", nil)

	prometheusService.Start()
	assertLogsContain(t, hook, "Starting service")

	require.NoError(t, prometheusService.Stop())
	assertLogsContain(t, hook, "Stopping service")
}

func assertLogsContain(t *testing.T, hook *logTest.Hook, want string) {
	t.Helper()
	for _, entry := range hook.AllEntries() {
		if entry.Message == want {
			return
		}
	}
	t.Errorf("no log entry %q", want)
}
