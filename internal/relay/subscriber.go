package relay

import (
	"errors"
	"sync"
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrBufferFull       = errors.New("subscriber buffer full")
)

// DefaultBufferSize is the number of frames a subscriber may have queued
// before further sends are treated as write failures.
const DefaultBufferSize = 64

// Subscriber is one open server-to-client stream. Frames handed to Send are
// queued in memory; the goroutine serving the stream drains Frames and
// writes them to the connection. A subscriber joins exactly one room for
// its whole lifetime.
type Subscriber struct {
	ID   string
	Room string

	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewSubscriber(id, room string, bufferSize int) *Subscriber {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Subscriber{
		ID:     id,
		Room:   room,
		frames: make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues frame without blocking.
func (s *Subscriber) Send(frame []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// Frames is drained by the stream writer.
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// Done is closed once the subscriber has been closed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close marks the subscriber closed. Safe to call from any goroutine, any
// number of times.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *Subscriber) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
