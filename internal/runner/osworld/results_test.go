package osworld

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func writeTaskResult(t *testing.T, dir, task, content string) {
	t.Helper()

	taskDir := filepath.Join(dir, task)
	require.NoError(t, os.MkdirAll(taskDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(taskDir, "result.txt"), []byte(content), 0o644,
	))
}

func TestParseResults_Aggregates(t *testing.T) {
	dir := t.TempDir()
	writeTaskResult(t, dir, "chrome/task-1", "1.0")
	writeTaskResult(t, dir, "chrome/task-2", "0.0")
	writeTaskResult(t, dir, "gimp/task-3", "0.5\n")
	writeTaskResult(t, dir, "gimp/task-4", "1.0")

	metrics, err := ParseResults(testLog(), dir)
	require.NoError(t, err)

	assert.Equal(t, float64(4), metrics["total_tasks"])
	assert.Equal(t, float64(3), metrics["successful_tasks"])
	assert.Equal(t, float64(1), metrics["failed_tasks"])
	assert.Equal(t, 75.0, metrics["success_rate"])
	assert.InDelta(t, 0.625, metrics["average_score"], 1e-9)
	assert.NotContains(t, metrics, "parse_errors")
}

func TestParseResults_CountsParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeTaskResult(t, dir, "task-ok", "1.0")
	writeTaskResult(t, dir, "task-empty", "")
	writeTaskResult(t, dir, "task-bad", "not-a-score")

	metrics, err := ParseResults(testLog(), dir)
	require.NoError(t, err)

	assert.Equal(t, float64(1), metrics["total_tasks"])
	assert.Equal(t, float64(2), metrics["parse_errors"])
	assert.Equal(t, 100.0, metrics["success_rate"])
}

func TestParseResults_PartialTrajectories(t *testing.T) {
	dir := t.TempDir()

	for _, task := range []string{"task-1", "task-2"} {
		taskDir := filepath.Join(dir, task)
		require.NoError(t, os.MkdirAll(taskDir, 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(taskDir, "traj.jsonl"), []byte("{}\n"), 0o644,
		))
	}

	metrics, err := ParseResults(testLog(), dir)
	require.NoError(t, err)

	assert.Equal(t, float64(2), metrics["partial_results"])
	assert.NotContains(t, metrics, "total_tasks")
}

func TestParseResults_EmptyDir(t *testing.T) {
	metrics, err := ParseResults(testLog(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestParseResults_MissingDir(t *testing.T) {
	_, err := ParseResults(testLog(), "/nonexistent/results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning result dir")
}
