package remote

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
)

// Handler is the engine side of the protocol.
type Handler interface {
	// Welcome answers the session handshake.
	Welcome(hello pfapi.Hello) pfapi.Welcome
	// Handle executes one request. progress may be called any number of times before returning.
	Handle(ctx context.Context, req pfapi.Request, progress func(pfapi.Progress)) pfapi.Response
}

// Serve runs one session on conn until the peer hangs up or ctx ends.
// Requests are executed one at a time in the order received.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when the session breaks for reasons other than the peer closing it
func Serve(ctx context.Context, conn io.ReadWriteCloser, h Handler) error {
	log := logging.Ctx(ctx)
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	msg, err := readFrame(conn)
	if err != nil {
		return err
	}
	if msg.Hello == nil {
		return pfapi.ErrorTransport("awaiting hello", errors.New("session did not start with hello"))
	}
	welcome := h.Welcome(*msg.Hello)
	if err := writeFrame(conn, &pfapi.Message{Welcome: &welcome}); err != nil {
		return err
	}
	log.Debug(LOG_TAG, "session opened for %s (%s)", msg.Hello.Name, msg.Hello.Client)

	for {
		msg, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Request == nil {
			log.Debug(LOG_TAG, "ignoring non-request frame")
			continue
		}
		req := *msg.Request
		var progress func(pfapi.Progress)
		if req.Progress {
			progress = func(p pfapi.Progress) {
				p.ID = req.ID
				if err := writeFrame(conn, &pfapi.Message{Progress: &p}); err != nil {
					log.Debug(LOG_TAG, "progress frame lost: %s", err)
				}
			}
		}
		resp := h.Handle(ctx, req, progress)
		resp.ID = req.ID
		if err := writeFrame(conn, &pfapi.Message{Response: &resp}); err != nil {
			return err
		}
	}
}

// ServeListener accepts sessions until the listener fails or ctx ends.
// Each session runs in its own goroutine.
func ServeListener(ctx context.Context, l net.Listener, h Handler) error {
	log := logging.Ctx(ctx)
	for {
		conn, err := l.Accept() // blocks, doesn't accept a context.
		if err != nil {
			log.Info(LOG_TAG, "listener stopped: %s", err)
			return err
		}
		go func() {
			if err := Serve(ctx, conn, h); err != nil {
				log.Info(LOG_TAG, "session ended: %s", err)
			}
		}()
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
