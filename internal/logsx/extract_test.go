package logsx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debug.log")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReverseReadLines_OrderedNewestFirst(t *testing.T) {
	path := writeLog(t,
		"2024-01-01 00:00:00,000 INFO: one",
		"2024-01-01 00:00:01,000 INFO: two",
		"2024-01-01 00:00:02,000 INFO: three",
	)

	lines, err := reverseReadLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "three")
	assert.Contains(t, lines[1], "two")
	assert.Contains(t, lines[2], "one")
}

func TestReverseReadLines_LargeFileSpansMultipleChunks(t *testing.T) {
	var lines []string
	for i := 0; i < 2000; i++ {
		lines = append(lines, "2024-01-01 00:00:00,000 INFO: padding padding padding padding")
	}
	path := writeLog(t, lines...)

	got, err := reverseReadLines(path)
	require.NoError(t, err)
	assert.Len(t, got, 2000)
}

func TestGetLines_SinceExclusiveFiltersExactMatch(t *testing.T) {
	path := writeLog(t,
		"2024-01-01 00:00:00,000 INFO: one",
		"2024-01-01 00:00:01,000 INFO: two",
		"2024-01-01 00:00:02,000 INFO: three",
	)

	extracted, err := GetLines(path, "2024-01-01 00:00:01,000", 1_000_000)
	require.NoError(t, err)
	assert.NotContains(t, extracted.Lines, "two")
	assert.NotContains(t, extracted.Lines, "one")
	assert.Contains(t, extracted.Lines, "three")
}

func TestGetLines_MaxSizeBoundSetsMoreData(t *testing.T) {
	path := writeLog(t,
		"2024-01-01 00:00:00,000 INFO: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"2024-01-01 00:00:01,000 INFO: bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	)

	extracted, err := GetLines(path, "1970-01-01 00:00:00,000", 100)
	require.NoError(t, err)
	assert.True(t, extracted.MoreData)
	assert.Contains(t, extracted.Lines, "bbbb")
	assert.NotContains(t, extracted.Lines, "aaaa")
}

func TestDetectSeverity(t *testing.T) {
	assert.Equal(t, "error", detectSeverity("2024-01-01 00:00:00,000 ERROR: boom"))
	assert.Equal(t, "debug", detectSeverity("2024-01-01 00:00:00,000 DEBUG: tick"))
	assert.Equal(t, "unknown", detectSeverity("no severity token here"))
}

func TestStatistics_BucketsBySeverityWithinWindow(t *testing.T) {
	old := "2000-01-01 00:00:00,000 INFO: ancient"
	path := writeLog(t,
		old,
		"2099-01-01 00:00:00,000 ERROR: recent error",
		"2099-01-01 00:00:01,000 DEBUG: recent debug",
	)

	counters, err := Statistics(path, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, counters["error"])
	assert.Equal(t, 1, counters["debug"])
	assert.Equal(t, 0, counters["info"])
}
