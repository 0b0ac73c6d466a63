package httpclient

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var errStreamEnded = errors.New("stream ended")

type event struct {
	name string
	data string
}

// readEvents parses a text/event-stream body and calls fn for every
// dispatched event. Comments (heartbeats) are skipped.
func readEvents(r io.Reader, fn func(*event) error) error {
	scanner := bufio.NewScanner(r)

	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	var ev event
	var data []string

	dispatch := func() error {
		if len(data) == 0 {
			ev = event{}
			return nil
		}

		ev.data = strings.Join(data, "\n")

		err := fn(&ev)

		ev = event{}
		data = data[:0]

		return err
	}

	for scanner.Scan() {
		line := scanner.Text()

		if len(line) == 0 {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")

		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.name = value
		case "data":
			data = append(data, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}
