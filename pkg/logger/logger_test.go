package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequestLogsStructuredFields(t *testing.T) {
	log := New("debug")
	hook := logrustest.NewLocal(log.Logger)

	log.HTTPRequest("req-1", "GET", "/dashboard", "test-agent", "10.0.0.1:4321", 200, 12)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "GET", entry.Data["method"])
	assert.Equal(t, "/dashboard", entry.Data["path"])
	assert.Equal(t, 200, entry.Data["status_code"])
	assert.Equal(t, int64(12), entry.Data["duration_ms"])
}

func TestHTTPRequestWarnsOnErrorStatus(t *testing.T) {
	log := New("debug")
	hook := logrustest.NewLocal(log.Logger)

	log.HTTPRequest("req-2", "POST", "/api/report/upload", "test-agent", "10.0.0.1:4321", 504, 1800000)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAuditLogsFailureAtWarn(t *testing.T) {
	log := New("debug")
	hook := logrustest.NewLocal(log.Logger)

	log.Audit("login-1", "access_decision", "/dashboard", false, map[string]interface{}{
		"error": "insert failed",
	})

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, true, entry.Data["audit"])
	assert.Equal(t, "login-1", entry.Data["login_id"])
	assert.Equal(t, "access_decision", entry.Data["action"])
	assert.Equal(t, false, entry.Data["success"])
}
