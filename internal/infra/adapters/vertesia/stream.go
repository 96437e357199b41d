package vertesia

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

const maxEventLine = 1 << 20

// eventStream decodes "data:" lines into events. Lines that are not data
// records or fail to decode are skipped.
type eventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	log     *zerolog.Logger
}

func newEventStream(body io.ReadCloser, logger *zerolog.Logger) *eventStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return &eventStream{body: body, scanner: sc, log: logger}
}

// NewEventStream wraps an arbitrary reader, mainly for tests and replays.
func NewEventStream(r io.ReadCloser, logger *zerolog.Logger) adapter.EventStream {
	return newEventStream(r, logger)
}

func (s *eventStream) Next() (adapter.StreamEvent, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var ev adapter.StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			s.log.Debug().Err(err).Int("len", len(payload)).Msg("skipping malformed stream record")
			continue
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return adapter.StreamEvent{}, err
	}
	return adapter.StreamEvent{}, io.EOF
}

func (s *eventStream) Close() error {
	return s.body.Close()
}
