// Package remote is a presentation bridge: an effect-port implementation
// that forwards actor, speech and scene effects to an external presentation
// client over socket.io, and resolves in-flight handles from the client's
// completion events.
//
// The engine stays presentation-agnostic; the bridge only translates the
// narrow effect contracts into events. Variable and inventory state are not
// presentation concerns and stay on whatever local port the host composes
// alongside this one.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Options configures a bridge connection.
type Options struct {
	URL                string
	Namespace          string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Bridge implements effect.Actors, effect.Speech and effect.Scene over one
// socket.io connection.
type Bridge struct {
	io *socket.Socket

	mu     sync.Mutex
	next   effect.Handle
	done   map[effect.Handle]bool
	closed bool
}

// Dial connects to the presentation client and waits for the socket to come
// up before returning.
func Dial(ctx context.Context, opts Options) (*Bridge, error) {
	logger := ctxlog.FromContext(ctx).With("bridge", "socketio", "url", opts.URL)
	logger.Debug("Connecting presentation bridge")

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	sioOpts := socket.DefaultOptions()
	sioOpts.SetPath(parsedURL.Path)
	sioOpts.SetTransports(types.NewSet(transports.WebSocket))
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sioOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	manager := socket.NewManager(baseURL, sioOpts)
	io := manager.Socket(opts.Namespace, sioOpts)

	b := &Bridge{io: io, done: make(map[effect.Handle]bool)}

	connected := make(chan struct{})
	failed := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		select {
		case <-connected:
		default:
			close(connected)
		}
	})
	io.On(types.EventName("connect_error"), func(args ...any) {
		select {
		case failed <- fmt.Errorf("connect error: %v", args):
		default:
		}
	})
	io.On(types.EventName("effect_done"), func(args ...any) {
		b.markDone(args...)
	})

	select {
	case <-connected:
	case err := <-failed:
		io.Disconnect()
		return nil, err
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("presentation bridge connect timed out after %s", timeout)
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	}

	logger.Debug("Presentation bridge connected")
	return b, nil
}

// Close disconnects the socket. In-flight handles report finished afterwards
// so a torn-down bridge cannot stall a list.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.io.Disconnect()
}

// markDone resolves a handle from a client completion event. The client
// echoes the numeric handle it received with the effect.
func (b *Bridge) markDone(args ...any) {
	if len(args) == 0 {
		return
	}
	var h effect.Handle
	switch v := args[0].(type) {
	case float64:
		h = effect.Handle(v)
	case int64:
		h = effect.Handle(v)
	case int:
		h = effect.Handle(v)
	default:
		return
	}
	b.mu.Lock()
	b.done[h] = true
	b.mu.Unlock()
}

func (b *Bridge) newHandle() effect.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.done[b.next] = false
	return b.next
}

func (b *Bridge) emit(event string, payload map[string]any) error {
	return b.io.Emit(event, payload)
}

// ---- effect.Actors ----

func (b *Bridge) Move(id string, to effect.Position, speed float64) (effect.Handle, error) {
	h := b.newHandle()
	err := b.emit("actor_move", map[string]any{
		"handle": int64(h), "actor": id,
		"x": to.X, "y": to.Y, "z": to.Z, "speed": speed,
	})
	if err != nil {
		return effect.NoHandle, err
	}
	return h, nil
}

func (b *Bridge) Place(id string, to effect.Position) error {
	return b.emit("actor_place", map[string]any{
		"actor": id, "x": to.X, "y": to.Y, "z": to.Z,
	})
}

func (b *Bridge) Face(id string, toward effect.Position) error {
	return b.emit("actor_face", map[string]any{
		"actor": id, "x": toward.X, "y": toward.Y, "z": toward.Z,
	})
}

// Poll reports completion for any bridge handle; a closed bridge reports
// everything finished.
func (b *Bridge) Poll(h effect.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return true
	}
	done, ok := b.done[h]
	if !ok {
		return true
	}
	return done
}

// ---- effect.Speech ----

func (b *Bridge) Say(actor, line string) (effect.Handle, error) {
	h := b.newHandle()
	err := b.emit("speech_say", map[string]any{
		"handle": int64(h), "actor": actor, "line": line,
	})
	if err != nil {
		return effect.NoHandle, err
	}
	return h, nil
}

func (b *Bridge) Narrate(line string) (effect.Handle, error) {
	return b.Say("", line)
}

func (b *Bridge) MarkSeen(actor, line string) {
	_ = b.emit("speech_mark_seen", map[string]any{
		"actor": actor, "line": line,
	})
}

// ---- effect.Scene ----

func (b *Bridge) Fade(out bool, duration float64) (effect.Handle, error) {
	h := b.newHandle()
	err := b.emit("scene_fade", map[string]any{
		"handle": int64(h), "out": out, "duration": duration,
	})
	if err != nil {
		return effect.NoHandle, err
	}
	return h, nil
}

func (b *Bridge) SetFaded(out bool) {
	_ = b.emit("scene_set_faded", map[string]any{"out": out})
}

func (b *Bridge) SetVisible(object string, visible bool) error {
	return b.emit("scene_visibility", map[string]any{
		"object": object, "visible": visible,
	})
}
