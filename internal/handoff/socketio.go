package handoff

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Events of the engine protocol.
const (
	EventProcess  = "process"
	EventAccepted = "accepted"
	EventRejected = "rejected"
)

// DefaultTimeout bounds connecting and waiting for the acknowledgement.
const DefaultTimeout = 10 * time.Second

// SocketIO hands the process to an execution engine over socket.io. The
// engine answers `accepted` or `rejected` with the envelope id.
type SocketIO struct {
	URL                string
	Namespace          string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type ack struct {
	accepted bool
	data     any
	err      error
}

// Deliver implements Handoff.
func (s *SocketIO) Deliver(ctx context.Context, proc *process.Process, plan *process.Plan) error {
	env := NewEnvelope(proc, plan)
	logger := ctxlog.FromContext(ctx).With("handoff", "socketio", "url", s.URL, "id", env.ID)
	logger.Debug("Handoff started.")

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := env.payload()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("engine URL %q needs a scheme and a host", s.URL)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if s.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	var connected atomic.Bool
	done := make(chan ack, 1)
	send := func(a ack) {
		select {
		case done <- a:
		default:
		}
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(s.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	// A reconnect must not hand the process over a second time.
	io.Once(types.EventName("connect"), func(...any) {
		connected.Store(true)
		logger.Debug("Connected, emitting process.", "sid", io.Id())
		io.Emit(EventProcess, data)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		send(ack{err: err})
	})
	io.On(types.EventName(EventAccepted), func(args ...any) {
		send(ack{accepted: true, data: first(args)})
	})
	io.On(types.EventName(EventRejected), func(args ...any) {
		send(ack{data: first(args)})
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if connected.Load() {
			return fmt.Errorf("timed out after %v waiting for %q", timeout, EventAccepted)
		}
		return fmt.Errorf("timed out after %v connecting to %s", timeout, s.URL)
	case a := <-done:
		if a.err != nil {
			return fmt.Errorf("socket.io connection failed: %w", a.err)
		}
		if !a.accepted {
			return fmt.Errorf("engine rejected process %s: %v", env.ID, a.data)
		}
		logger.Info("Process accepted by engine.", "process", env.Process)
		return nil
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
