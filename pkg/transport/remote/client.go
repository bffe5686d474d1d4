// Package remote implements the framed request/response transport.
//
// Calls from many goroutines may share one Client: writes are serialized and
// responses are matched to requests by ID. Progress frames for a request are
// routed to the progress channel registered in the call's context.
package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/transport"
)

const LOG_TAG = "remote"

// Options tune session negotiation.
type Options struct {
	ClientName   string   // reported to the engine; defaults to "pinflow"
	Capabilities []string // requested engine capabilities
	DialTimeout  time.Duration
}

// Client is the remote Transport.
type Client struct {
	conn io.ReadWriteCloser
	info pfapi.Welcome
	id   string

	wmu sync.Mutex // serializes frame writes

	mu      sync.Mutex
	next    uint64
	pending map[uint64]*pendingCall
	closed  bool
	failure error
	done    chan struct{}
}

type pendingCall struct {
	resp     chan pfapi.Response
	progress chan<- pfapi.Progress
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to an engine listening on a TCP address and negotiates a session.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when the engine cannot be reached or the handshake fails
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, pfapi.ErrorTransport("dialing "+addr, err)
	}
	c, err := New(ctx, conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New negotiates a session over an established connection and starts the reader.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when the handshake fails
func New(ctx context.Context, conn io.ReadWriteCloser, opts Options) (*Client, error) {
	log := logging.Ctx(ctx)
	name := opts.ClientName
	if name == "" {
		name = "pinflow"
	}
	caps := opts.Capabilities
	if caps == nil {
		caps = []string{}
	}
	c := &Client{
		conn:    conn,
		id:      uuid.New().String(),
		pending: map[uint64]*pendingCall{},
		done:    make(chan struct{}),
	}

	if nc, ok := conn.(net.Conn); ok {
		if deadline, ok := ctx.Deadline(); ok {
			nc.SetDeadline(deadline)
			defer nc.SetDeadline(time.Time{})
		}
	}
	hello := pfapi.Message{Hello: &pfapi.Hello{Client: c.id, Name: name, Capabilities: caps}}
	if err := writeFrame(conn, &hello); err != nil {
		return nil, pfapi.Annotate(err, "sending hello")
	}
	msg, err := readFrame(conn)
	if err != nil {
		return nil, pfapi.Annotate(err, "awaiting welcome")
	}
	if msg.Welcome == nil {
		return nil, pfapi.ErrorTransport("awaiting welcome", errors.New("engine answered hello with an unexpected message"))
	}
	c.info = *msg.Welcome
	log.Debug(LOG_TAG, "session %s: engine %q version %s", c.id, c.info.Engine, c.info.Version)

	go c.readLoop(log)
	return c, nil
}

func (c *Client) Info() pfapi.Welcome { return c.info }

func (c *Client) Kind() string { return "remote" }

// SessionID is the client identity sent in the handshake.
func (c *Client) SessionID() string { return c.id }

func (c *Client) readLoop(log *logging.Logger) {
	for {
		msg, err := readFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}
		switch {
		case msg.Response != nil:
			c.mu.Lock()
			p := c.pending[msg.Response.ID]
			delete(c.pending, msg.Response.ID)
			c.mu.Unlock()
			if p == nil {
				log.Debug(LOG_TAG, "dropping response for unknown request %d", msg.Response.ID)
				continue
			}
			p.resp <- *msg.Response
		case msg.Progress != nil:
			c.mu.Lock()
			p := c.pending[msg.Progress.ID]
			c.mu.Unlock()
			if p == nil || p.progress == nil {
				continue
			}
			// progress is advisory; a slow reader loses events rather than stalling the channel.
			select {
			case p.progress <- *msg.Progress:
			default:
			}
		default:
			log.Debug(LOG_TAG, "ignoring unexpected frame")
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure == nil {
		if c.closed {
			err = pfapi.ErrorTransport("channel closed", io.EOF)
		}
		c.failure = err
		close(c.done)
	}
	c.pending = map[uint64]*pendingCall{}
}

// Invoke sends one request and waits for its response.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when the channel fails or ctx ends first
//   - any code carried by the engine's fault
func (c *Client) Invoke(ctx context.Context, call transport.Call) (pfapi.Value, error) {
	args := call.Args
	if args == nil {
		args = []pfapi.Value{}
	}
	progress := transport.ProgressFrom(ctx)
	p := &pendingCall{resp: make(chan pfapi.Response, 1), progress: progress}

	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return pfapi.Value{}, pfapi.Annotate(err, call.Op.Name)
	}
	c.next++
	id := c.next
	c.pending[id] = p
	c.mu.Unlock()

	req := pfapi.Message{Request: &pfapi.Request{
		ID:       id,
		Op:       call.Op.Name,
		Handle:   uint64(call.Handle),
		Args:     args,
		Progress: progress != nil,
	}}
	c.wmu.Lock()
	err := writeFrame(c.conn, &req)
	c.wmu.Unlock()
	if err != nil {
		c.forget(id)
		return pfapi.Value{}, err
	}

	select {
	case resp := <-p.resp:
		if resp.Fault != nil {
			return pfapi.Value{}, pfapi.ErrorFromFault(call.Op.Name, *resp.Fault)
		}
		if resp.Result == nil {
			return pfapi.Value{}, nil
		}
		return *resp.Result, nil
	case <-c.done:
		c.mu.Lock()
		err := c.failure
		c.mu.Unlock()
		return pfapi.Value{}, pfapi.Annotate(err, call.Op.Name)
	case <-ctx.Done():
		c.forget(id)
		return pfapi.Value{}, pfapi.ErrorTransport(call.Op.Name, ctx.Err())
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close shuts the connection. Calls in flight fail with a transport fault.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
