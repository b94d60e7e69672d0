package relay

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	EventHello = "hello"
	EventPatch = "patch"
	EventPing  = "ping"
)

type Hello struct {
	UID  string `json:"uid"`
	Room string `json:"room"`
	TS   int64  `json:"ts"`
}

type Ping struct {
	TS int64 `json:"ts"`
}

// Frame encodes one server-sent event. Multi-line data is split across
// several data fields, which clients join back with "\n".
func Frame(event string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(event) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(event)
	buf.WriteByte('\n')

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	for _, line := range bytes.Split(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func HelloFrame(uid, room string, now time.Time) []byte {
	data, _ := json.Marshal(Hello{UID: uid, Room: room, TS: now.UnixMilli()})
	return Frame(EventHello, data)
}

func PingFrame(now time.Time) []byte {
	data, _ := json.Marshal(Ping{TS: now.UnixMilli()})
	return Frame(EventPing, data)
}

// PatchFrame wraps a published payload verbatim.
func PatchFrame(payload []byte) []byte {
	return Frame(EventPatch, payload)
}
