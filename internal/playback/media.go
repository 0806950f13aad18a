package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventKind identifies a media element notification.
type EventKind int

const (
	EventLoadedMetadata EventKind = iota
	EventPlay
	EventPause
	EventTimeUpdate
	EventSeeked
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventTimeUpdate:
		return "timeupdate"
	case EventSeeked:
		return "seeked"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single media notification. Time is the media position in
// seconds at the moment the event fired.
type Event struct {
	Kind EventKind
	Time float64
	Err  error
}

// Media is a playable element exposing current time, duration, native
// dimensions, transport commands, and lifecycle notifications. The driver is
// the sole consumer of Events.
type Media interface {
	// Load begins metadata resolution; EventLoadedMetadata (or EventError)
	// follows on the event channel.
	Load() error
	CurrentTime() float64
	Duration() float64
	NativeSize() (width, height int)
	Play() error
	Pause() error
	Seek(t float64) error
	Events() <-chan Event
	// Close stops all internal activity and closes the event channel.
	Close() error
}

// SimMedia is a clock-driven media element used for headless replay and
// tests. It advances its position in wall time (scaled by Rate) while
// playing, emitting the same notifications a real media element would.
type SimMedia struct {
	duration float64
	width    int
	height   int
	rate     float64
	tick     time.Duration

	events chan Event

	mu      sync.Mutex
	current float64
	playing bool
	loaded  bool
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewSimMedia creates a simulated media element with the given duration in
// seconds and native pixel dimensions. Rate defaults to real time.
func NewSimMedia(duration float64, width, height int) *SimMedia {
	return &SimMedia{
		duration: duration,
		width:    width,
		height:   height,
		rate:     1.0,
		tick:     33 * time.Millisecond,
		events:   make(chan Event, 64),
	}
}

// SetRate sets the playback speed multiplier. Call before Play.
func (m *SimMedia) SetRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rate > 0 {
		m.rate = rate
	}
}

// SetTick sets the internal clock granularity. Call before Play.
func (m *SimMedia) SetTick(tick time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tick > 0 {
		m.tick = tick
	}
}

// Load implements Media.
func (m *SimMedia) Load() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("media is closed")
	}
	m.loaded = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.emit(Event{Kind: EventLoadedMetadata}, true)
	m.wg.Done()
	return nil
}

// CurrentTime implements Media.
func (m *SimMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Duration implements Media.
func (m *SimMedia) Duration() float64 {
	return m.duration
}

// NativeSize implements Media.
func (m *SimMedia) NativeSize() (int, int) {
	return m.width, m.height
}

// Events implements Media.
func (m *SimMedia) Events() <-chan Event {
	return m.events
}

// Play implements Media. Playing past the end restarts from zero.
func (m *SimMedia) Play() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("media is closed")
	}
	if !m.loaded {
		m.mu.Unlock()
		return fmt.Errorf("media not loaded")
	}
	if m.playing {
		m.mu.Unlock()
		return nil
	}
	if m.duration > 0 && m.current >= m.duration {
		m.current = 0
	}
	m.playing = true
	stop := make(chan struct{})
	m.stop = stop
	start := m.current
	// Registered under the lock so Close cannot slip between the closed
	// check and the emit.
	m.wg.Add(2)
	m.mu.Unlock()

	m.emit(Event{Kind: EventPlay, Time: start}, true)
	m.wg.Done()

	go m.run(stop)
	return nil
}

// Pause implements Media. Pausing while not playing is a no-op.
func (m *SimMedia) Pause() error {
	m.mu.Lock()
	if !m.playing {
		m.mu.Unlock()
		return nil
	}
	m.playing = false
	stop := m.stop
	m.stop = nil
	now := m.current
	m.wg.Add(1)
	m.mu.Unlock()

	close(stop)
	m.emit(Event{Kind: EventPause, Time: now}, true)
	m.wg.Done()
	return nil
}

// Seek implements Media. Seeking implicitly pauses the clock; the driver owns
// the resume decision.
func (m *SimMedia) Seek(t float64) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("media is closed")
	}
	if t < 0 {
		t = 0
	}
	if m.duration > 0 && t > m.duration {
		t = m.duration
	}
	m.current = t
	var stop chan struct{}
	if m.playing {
		m.playing = false
		stop = m.stop
		m.stop = nil
	}
	m.wg.Add(1)
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.emit(Event{Kind: EventSeeked, Time: t}, true)
	m.wg.Done()
	return nil
}

// Close implements Media.
func (m *SimMedia) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var stop chan struct{}
	if m.playing {
		m.playing = false
		stop = m.stop
		m.stop = nil
	}
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.wg.Wait()
	close(m.events)
	return nil
}

// run advances the clock until stopped or the end of media.
func (m *SimMedia) run(stop chan struct{}) {
	defer m.wg.Done()

	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.playing {
				m.mu.Unlock()
				return
			}
			m.current += m.rate * tick.Seconds()
			ended := m.duration > 0 && m.current >= m.duration
			if ended {
				m.current = m.duration
				m.playing = false
				m.stop = nil
			}
			now := m.current
			m.mu.Unlock()

			if ended {
				m.emit(Event{Kind: EventEnded, Time: now}, true)
				return
			}
			m.emit(Event{Kind: EventTimeUpdate, Time: now}, false)
		}
	}
}

// emit delivers an event. Lifecycle events wait briefly for a slow consumer;
// timeupdates are droppable.
func (m *SimMedia) emit(ev Event, critical bool) {
	if !critical {
		select {
		case m.events <- ev:
		default:
		}
		return
	}
	select {
	case m.events <- ev:
	case <-time.After(time.Second):
		slog.Warn("media event dropped, consumer not draining", "kind", ev.Kind.String())
	}
}
