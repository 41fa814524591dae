package ingest

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteResults records the final tally as a small two-line artifact:
// succeeded count on the first line, failed count on the second.
func WriteResults(path string, o Outcome) error {
	data := fmt.Sprintf("%d\n%d\n", o.Succeeded, o.Failed)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return errors.Wrapf(err, "writing results %s", path)
	}
	return nil
}

// ReadResults reads back the tally written by a previous run.
func ReadResults(path string) (Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "reading results %s", path)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return Outcome{}, errors.Errorf("results %s: expected two lines, got %d", path, len(lines))
	}
	succeeded, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "results %s: bad succeeded count", path)
	}
	failed, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "results %s: bad failed count", path)
	}
	return Outcome{Succeeded: succeeded, Failed: failed}, nil
}
