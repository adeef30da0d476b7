package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event carrying property changes.
const EventName = "property_changed"

// Emitter is the part of a socket.io client the sink needs.
type Emitter interface {
	Emit(ev string, args ...any) error
}

// SocketIO broadcasts events to a live UI over socket.io. Emission happens
// on a dedicated goroutine so update callbacks never wait on the network;
// events are dropped when the buffer is full.
type SocketIO struct {
	queue chan Event
	done  chan struct{}
}

// NewSocketIO starts a sink forwarding to emitter. Close stops it.
func NewSocketIO(ctx context.Context, emitter Emitter, buffer int) *SocketIO {
	s := &SocketIO{queue: make(chan Event, buffer), done: make(chan struct{})}
	logger := ctxlog.FromContext(ctx).With("sink", "socketio")
	go func() {
		defer close(s.done)
		for ev := range s.queue {
			if err := emitter.Emit(EventName, ev); err != nil {
				logger.Warn("Failed to emit property change.", "owner", ev.OwnerID, "prop", ev.PropID, "error", err)
			}
		}
	}()
	return s
}

func (s *SocketIO) Notify(ctx context.Context, ev Event) {
	select {
	case s.queue <- ev:
	default:
		ctxlog.FromContext(ctx).Debug("Notification buffer full, dropping event.", "owner", ev.OwnerID, "prop", ev.PropID)
	}
}

// Close drains pending events and stops the forwarding goroutine.
func (s *SocketIO) Close() {
	close(s.queue)
	<-s.done
}

// DialSocketIO connects a socket.io client to rawURL and waits for the
// connection to be established.
func DialSocketIO(ctx context.Context, rawURL, namespace string, insecureSkipVerify bool) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL, "namespace", namespace)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if insecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Notification channel connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs[0])
		}
		connectChan <- err
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(15 * time.Second):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after 15s waiting for socket.io connection")
	}
}
