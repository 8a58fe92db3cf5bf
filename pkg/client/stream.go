package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sparks/battrack/pkg/events"
)

const maxEventSize = 1 << 20

// SubscribeEvents opens the daemon's event stream. The returned channel is
// closed when ctx is cancelled or the daemon ends the stream.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", unwrapDialError(err))
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("got %d: %s", resp.StatusCode, string(b))
	}

	ch := make(chan events.Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		err := readEvents(ctx, resp.Body, ch)
		if err != nil && ctx.Err() == nil {
			logrus.WithError(err).Debug("event stream ended")
		}
	}()

	return ch, nil
}

// readEvents parses a text/event-stream body and sends each complete event
// to ch. Multiple data lines are joined with newlines.
func readEvents(ctx context.Context, r io.Reader, ch chan<- events.Event) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		name string
		data []string
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				ev := events.Event{Name: name, Data: []byte(strings.Join(data, "\n"))}
				if ev.Name == "" {
					ev.Name = "message"
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			name, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	return sc.Err()
}
