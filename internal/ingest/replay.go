package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/kerotrack/kerotrack/internal/pipeline"
)

// Replay feeds recorded rtl_433 JSON lines from r through the pipeline,
// one payload per line. Blank lines, foreign device payloads and invalid
// readings are skipped; anything else that fails stops the replay.
// Returns the number of readings processed.
func Replay(r io.Reader, proc Processor, clock clockwork.Clock, logger *slog.Logger) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	processed := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		raw, err := Parse([]byte(text), clock.Now())
		if err != nil {
			if errors.Is(err, ErrSkipMessage) {
				continue
			}
			logger.Warn("skipping unparseable line", "line", line, "err", err)
			continue
		}

		if _, err := proc.Process(raw); err != nil {
			if errors.Is(err, pipeline.ErrInvalidReading) {
				continue
			}
			return processed, fmt.Errorf("line %d: %w", line, err)
		}
		processed++
	}
	if err := scanner.Err(); err != nil {
		return processed, fmt.Errorf("read replay stream: %w", err)
	}

	logger.Info("replay complete", "lines", line, "processed", processed)
	return processed, nil
}
