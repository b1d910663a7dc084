package osworld

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseResults walks the result directory for per-task result.txt
// score files and aggregates them into a flat metric mapping. When no
// scores exist yet, trajectory files are counted as partial results
// so an interrupted evaluation still reports something.
func ParseResults(
	log logrus.FieldLogger,
	resultDir string,
) (map[string]float64, error) {
	var (
		totalTasks      int
		successfulTasks int
		totalScore      float64
		parseErrors     int
		trajFiles       int
	)

	err := filepath.WalkDir(
		resultDir,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			switch d.Name() {
			case "traj.jsonl":
				trajFiles++

				return nil
			case "result.txt":
				// Handled below.
			default:
				return nil
			}

			score, err := readScore(path)
			if err != nil {
				log.WithError(err).WithField("file", path).
					Warn("Skipping unreadable task result")

				parseErrors++

				return nil
			}

			totalTasks++
			totalScore += score

			if score > 0 {
				successfulTasks++
			}

			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("scanning result dir %s: %w", resultDir, err)
	}

	metrics := make(map[string]float64)

	if totalTasks == 0 {
		if trajFiles > 0 {
			log.WithField("count", trajFiles).
				Warn("No task scores found, reporting partial results")

			metrics["partial_results"] = float64(trajFiles)
		}

		return metrics, nil
	}

	metrics["success_rate"] = float64(successfulTasks) / float64(totalTasks) * 100
	metrics["average_score"] = totalScore / float64(totalTasks)
	metrics["total_tasks"] = float64(totalTasks)
	metrics["successful_tasks"] = float64(successfulTasks)
	metrics["failed_tasks"] = float64(totalTasks - successfulTasks)

	if parseErrors > 0 {
		metrics["parse_errors"] = float64(parseErrors)
	}

	return metrics, nil
}

// readScore reads a single result.txt score file.
func readScore(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, fmt.Errorf("empty result file %s", path)
	}

	score, err := strconv.ParseFloat(content, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score in %s: %w", path, err)
	}

	return score, nil
}
