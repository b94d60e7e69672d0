package syncclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const maxFrameBytes = 4 << 20

var errStreamEnded = errors.New("stream ended")

// Message is one inbound frame. Data holds the frame's data verbatim; for
// patch frames that is exactly the text the publisher sent.
type Message struct {
	Type string
	Data json.RawMessage
}

// readEvents parses an event stream and calls dispatch for every complete
// frame. It returns errStreamEnded when the server closes the stream.
func readEvents(body io.Reader, dispatch func(Message)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	var eventType string
	var dataLines []string
	hasData := false

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if hasData {
				if eventType == "" {
					eventType = "message"
				}
				dispatch(Message{Type: eventType, Data: json.RawMessage(strings.Join(dataLines, "\n"))})
			}
			eventType = ""
			dataLines = dataLines[:0]
			hasData = false
		case strings.HasPrefix(line, ":"):
			// comment
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				eventType = value
			case "data":
				dataLines = append(dataLines, value)
				hasData = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamEnded
}
