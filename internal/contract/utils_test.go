package contract

import (
	"testing"

	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestIsExcluded(t *testing.T) {
	excludes := []string{"analytics", " ", "track"}
	assert.True(t, IsExcluded("/api/analytics/event", excludes))
	assert.True(t, IsExcluded("/tracking.gif", excludes))
	assert.False(t, IsExcluded("/index.html", excludes))
	assert.False(t, IsExcluded("/index.html", nil))
}

func TestTruncateKey(t *testing.T) {
	assert.Equal(t, "GET /a", TruncateKey("GET /a", 10))
	assert.Equal(t, "GET /ve...", TruncateKey("GET /very/long/path", 10))
	assert.Equal(t, "GET /very/long/path", TruncateKey("GET /very/long/path", 3))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}

func TestGetColorState(t *testing.T) {
	for _, state := range []schema.WorkerState{schema.ActiveState, schema.WaitingState, schema.RedundantState, schema.InstallingState} {
		assert.Contains(t, GetColorState(state), string(state))
	}
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("bogus").GetLevel())
}
