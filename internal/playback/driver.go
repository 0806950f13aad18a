// Package playback drives the overlay renderer once per displayed frame,
// reacting to play, pause, and seek transitions on a media element.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/formlab/squatview/internal/overlay"
	"github.com/formlab/squatview/internal/types"
)

// State is a playback driver state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateSeeking
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// defaultDrawRate bounds the polling draw loop to roughly 30 draws per
// second while playing, to bound CPU cost.
const defaultDrawRate = 30

// Config assembles a playback driver.
type Config struct {
	Media    Media
	Surface  overlay.Surface
	Document *types.Document
	// DrawRate is the draw-loop frequency in draws per second while
	// playing. Zero takes the default of 30.
	DrawRate int
	// OnDraw, when set, is invoked synchronously after every completed
	// draw with the query time that was rendered. Replay jobs use it to
	// snapshot the surface.
	OnDraw func(queryTime float64)
	// StopOnEnd makes Run return after the media reaches its end.
	// Headless replay sets this; interactive sessions leave the last
	// overlay visible and keep running.
	StopOnEnd bool
}

// Driver owns the playback state machine and the surface-clear-before-draw
// contract. All mutation happens on the Run goroutine; accessors hand out
// snapshots. At most one draw loop is active per surface: every transition
// out of Playing cancels the pending loop before anything else is scheduled.
type Driver struct {
	media     Media
	surface   overlay.Surface
	doc       *types.Document
	interval  time.Duration
	onDraw    func(float64)
	stopOnEnd bool

	// Owned by the Run goroutine.
	renderer *overlay.Renderer
	ticker   *time.Ticker

	mu    sync.RWMutex
	state State
	ps    types.PlaybackState
	draws uint64
	err   error
}

// NewDriver validates the configuration and creates a driver in Idle.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Media == nil {
		return nil, fmt.Errorf("media is required")
	}
	if cfg.Surface == nil {
		return nil, fmt.Errorf("surface is required")
	}
	rate := cfg.DrawRate
	if rate <= 0 {
		rate = defaultDrawRate
	}
	return &Driver{
		media:     cfg.Media,
		surface:   cfg.Surface,
		doc:       cfg.Document,
		interval:  time.Second / time.Duration(rate),
		onDraw:    cfg.OnDraw,
		stopOnEnd: cfg.StopOnEnd,
		state:     StateIdle,
	}, nil
}

// Run loads the media and processes events until the context is cancelled,
// the media's event channel closes, or (with StopOnEnd) playback ends.
// Teardown is total: the pending draw loop is cancelled and the media closed,
// leaking neither timers nor listeners.
func (d *Driver) Run(ctx context.Context) error {
	d.setState(StateLoading)
	if err := d.media.Load(); err != nil {
		d.fail(err)
		return err
	}

	defer d.teardown()

	for {
		var tickC <-chan time.Time
		if d.ticker != nil {
			tickC = d.ticker.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-d.media.Events():
			if !ok {
				return nil
			}
			if done := d.handle(ev); done {
				return nil
			}

		case <-tickC:
			d.drawAt(d.media.CurrentTime())
		}
	}
}

// Play forwards the play command; the state transition follows the event.
func (d *Driver) Play() error {
	return d.media.Play()
}

// Pause forwards the pause command.
func (d *Driver) Pause() error {
	return d.media.Pause()
}

// Seek scrubs to t. The driver enters Seeking immediately so that the pause
// notification raised by the transport does not trigger its own settle draw;
// the single draw happens when the seek lands.
func (d *Driver) Seek(t float64) error {
	d.setState(StateSeeking)
	d.setSeekingFlag(true)
	if err := d.media.Pause(); err != nil {
		return err
	}
	return d.media.Seek(t)
}

// State returns the current state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Snapshot returns a copy of the playback state.
func (d *Driver) Snapshot() types.PlaybackState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ps
}

// Draws returns the number of completed draw passes.
func (d *Driver) Draws() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.draws
}

// Err returns the media error after entering StateError.
func (d *Driver) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// handle applies one media event to the state machine. It runs on the Run
// goroutine only.
func (d *Driver) handle(ev Event) (done bool) {
	switch ev.Kind {
	case EventLoadedMetadata:
		d.onMetadata()

	case EventPlay:
		d.stopLoop()
		d.startLoop()
		d.setState(StatePlaying)
		d.setPlaying(true)

	case EventPause:
		d.stopLoop()
		d.setPlaying(false)
		// A pause raised mid-seek settles on the seeked event instead.
		if d.State() == StateSeeking {
			return false
		}
		d.setState(StatePaused)
		d.drawAt(ev.Time)

	case EventSeeked:
		d.stopLoop()
		d.setPlaying(false)
		d.setSeekingFlag(false)
		d.setState(StatePaused)
		d.drawAt(ev.Time)

	case EventTimeUpdate:
		d.setCurrentTime(ev.Time)

	case EventEnded:
		d.stopLoop()
		d.setPlaying(false)
		d.setState(StateEnded)
		// Land exactly on the final position so the resting overlay is
		// not one polling interval stale.
		d.drawAt(ev.Time)
		if d.stopOnEnd {
			return true
		}

	case EventError:
		d.stopLoop()
		d.fail(ev.Err)
	}
	return false
}

// onMetadata resolves native geometry, resizes the surface to the media's
// native resolution, builds the renderer, and draws frame zero.
func (d *Driver) onMetadata() {
	w, h := d.media.NativeSize()
	duration := d.media.Duration()
	orientation := types.DetectOrientation(w, h)

	d.surface.Resize(w, h)
	d.renderer = overlay.NewRenderer(d.doc, duration, orientation)

	d.mu.Lock()
	d.ps.NativeWidth = w
	d.ps.NativeHeight = h
	d.ps.Duration = duration
	d.ps.Orientation = orientation
	d.state = StateReady
	d.mu.Unlock()

	slog.Debug("media metadata loaded",
		"width", w,
		"height", h,
		"duration_s", duration,
		"orientation", string(orientation),
	)

	d.drawAt(0)
}

// startLoop begins the throttled draw loop. The previous loop is always
// cancelled first, so a second loop can never race the first.
func (d *Driver) startLoop() {
	d.stopLoop()
	d.ticker = time.NewTicker(d.interval)
}

func (d *Driver) stopLoop() {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
}

// drawAt renders the overlay for the given media time.
func (d *Driver) drawAt(t float64) {
	if d.renderer == nil {
		return
	}
	d.renderer.Draw(d.surface, t)

	d.mu.Lock()
	d.ps.CurrentTime = t
	d.draws++
	d.mu.Unlock()

	if d.onDraw != nil {
		d.onDraw(t)
	}
}

func (d *Driver) teardown() {
	d.stopLoop()
	if err := d.media.Close(); err != nil {
		slog.Warn("media close failed", "error", err)
	}
}

func (d *Driver) fail(err error) {
	d.mu.Lock()
	d.state = StateError
	d.err = err
	d.ps.IsPlaying = false
	d.mu.Unlock()
	slog.Error("media error, playback disabled", "error", err)
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Driver) setPlaying(playing bool) {
	d.mu.Lock()
	d.ps.IsPlaying = playing
	d.mu.Unlock()
}

func (d *Driver) setSeekingFlag(seeking bool) {
	d.mu.Lock()
	d.ps.IsSeeking = seeking
	d.mu.Unlock()
}

func (d *Driver) setCurrentTime(t float64) {
	d.mu.Lock()
	d.ps.CurrentTime = t
	d.mu.Unlock()
}
