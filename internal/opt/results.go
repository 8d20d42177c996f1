package opt

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// OutputPaths returns the summary and solution file paths of a run, named after the
// instance file including its extension
func OutputPaths(outDir, instancePath string, seed int64) (summary, sol string) {
	base := filepath.Base(instancePath)
	prefix := filepath.Join(outDir, fmt.Sprintf("%s_seed-%d", base, seed))
	return prefix + ".out", prefix + ".vrp.sol"
}

// WriteResult stores the summary line and the best solution of res
func WriteResult(outDir, instancePath string, seed int64, res *Result) (summary, sol string, err error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}
	summary, sol = OutputPaths(outDir, instancePath, seed)

	line := strconv.FormatFloat(res.Best.Cost(), 'g', 10, 64) + "\t" + strconv.Itoa(int(res.Elapsed.Seconds())) + "\n"
	if err := os.WriteFile(summary, []byte(line), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write summary: %w", err)
	}
	if err := res.Best.StoreToFile(sol); err != nil {
		return "", "", err
	}
	return summary, sol, nil
}
