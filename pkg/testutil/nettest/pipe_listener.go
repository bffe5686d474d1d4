package nettest

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/warptools/pinflow/pfapi"
)

const DefaultTimeout = 30 * time.Second

// PipeListener is a net.Listener whose connections are in-memory net.Pipe pairs.
// Remote engine sessions in tests are served from it.
type PipeListener struct {
	connections chan net.Conn
	ctx         context.Context
	done        chan struct{}
	Timeout     time.Duration // Sets default deadline for new connections.
}

var _ net.Listener = (*PipeListener)(nil)

// Errors: none
func (p *PipeListener) Close() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return nil
}

// Errors:
//
//   - pinflow-error-transport-fault --
func (p *PipeListener) Accept() (net.Conn, error) {
	select {
	case <-p.done:
		return nil, pfapi.ErrorTransport("accept", io.EOF)
	case <-p.ctx.Done():
		return nil, pfapi.ErrorTransport("accept", p.ctx.Err())
	case conn := <-p.connections:
		return conn, nil
	}
}

func (p *PipeListener) Addr() net.Addr { return pipeAddr{} }

// Dial opens a new connection to the listener.
// The client end gets a deadline of Timeout so that blocked tests fail instead of hanging.
//
// Errors:
//
//   - pinflow-error-transport-fault --
func (p *PipeListener) Dial(ctx context.Context) (net.Conn, error) {
	serverConn, clientConn := net.Pipe()
	clientConn.SetDeadline(time.Now().Add(p.Timeout))
	select {
	case <-ctx.Done():
		return nil, pfapi.ErrorTransport("dial", ctx.Err())
	case <-p.done:
		return nil, pfapi.ErrorTransport("dial", io.EOF)
	case p.connections <- serverConn:
		return clientConn, nil
	case <-time.After(p.Timeout):
		return nil, pfapi.ErrorTransport("dial", errors.New("dial timeout"))
	}
}

func NewPipeListener(ctx context.Context) *PipeListener {
	return &PipeListener{
		ctx:         ctx,
		connections: make(chan net.Conn),
		done:        make(chan struct{}),
		Timeout:     DefaultTimeout,
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
