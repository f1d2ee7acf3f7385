package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseProgress reads the key=value blocks written by `ffmpeg -progress` and
// calls emit once per block with the share of durationSeconds encoded so far.
// Percentages are not capped: ffmpeg's out_time can overshoot the probed
// duration.
func ParseProgress(r io.Reader, durationSeconds float64, emit func(percent float64)) error {
	if durationSeconds <= 0 {
		durationSeconds = 1
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var outTimeUs int64
	outTimeSet := false

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}

		switch key {
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				outTimeUs = us
				outTimeSet = true
			}
		case "out_time":
			if !outTimeSet {
				if us, ok := parseOutTime(value); ok {
					outTimeUs = us
					outTimeSet = true
				}
			}
		case "progress":
			// "continue" or "end" closes a block
			if outTimeSet {
				emit(float64(outTimeUs) / 1e6 / durationSeconds * 100)
			}
			outTimeSet = false
		}
	}

	return scanner.Err()
}

// parseOutTime parses HH:MM:SS.micro into microseconds.
func parseOutTime(s string) (int64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0, false
	}

	total := float64(hours*3600+minutes*60) + seconds
	return int64(total * 1e6), true
}

// tail keeps the last n lines written to it.
type tail struct {
	lines []string
	max   int
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "; ")
}
