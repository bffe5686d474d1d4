package remote

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/transport"
)

var opEcho = pfapi.Op{Name: "test.echo", Since: pfapi.V(1, 0, 0)}
var opFail = pfapi.Op{Name: "test.fail", Since: pfapi.V(1, 0, 0)}
var opBlock = pfapi.Op{Name: "test.block", Since: pfapi.V(1, 0, 0)}

// echoHandler answers test.echo with its first argument and reports three progress steps on request.
type echoHandler struct {
	mu      sync.Mutex
	hello   pfapi.Hello
	release chan struct{}
}

func (h *echoHandler) Welcome(hello pfapi.Hello) pfapi.Welcome {
	h.mu.Lock()
	h.hello = hello
	h.mu.Unlock()
	return pfapi.Welcome{Engine: "echo", Version: pfapi.V(4, 1, 0), Context: hello.Capabilities}
}

func (h *echoHandler) Handle(ctx context.Context, req pfapi.Request, progress func(pfapi.Progress)) pfapi.Response {
	switch req.Op {
	case opEcho.Name:
		if progress != nil {
			for i := int64(1); i <= 3; i++ {
				progress(pfapi.Progress{Label: req.Op, Done: i, Total: 3})
			}
		}
		if len(req.Args) == 0 {
			return pfapi.Response{}
		}
		return pfapi.Response{Result: &req.Args[0]}
	case opBlock.Name:
		<-h.release
		return pfapi.Response{}
	}
	return pfapi.Response{Fault: &pfapi.Fault{Code: pfapi.CodeNotFound, Message: "unknown op " + req.Op}}
}

func session(t *testing.T, h Handler, opts Options) (*Client, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	server, conn := net.Pipe()
	go Serve(ctx, server, h)
	c, err := New(ctx, conn, opts)
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() {
		c.Close()
		cancel()
	})
	return c, cancel
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	msg := pfapi.Message{Progress: &pfapi.Progress{ID: 3, Label: "norm", Done: 1, Total: 2}}
	qt.Assert(t, writeFrame(&buf, &msg), qt.IsNil)
	qt.Check(t, int(binary.BigEndian.Uint32(buf.Bytes()[:4])), qt.Equals, buf.Len()-4)
	back, err := readFrame(&buf)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, back, qt.DeepEquals, msg)

	var huge [4]byte
	binary.BigEndian.PutUint32(huge[:], MaxFrameSize+1)
	_, err = readFrame(bytes.NewReader(huge[:]))
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)

	_, err = readFrame(bytes.NewReader([]byte{0, 0, 0, 9, 1, 2}))
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)

	_, err = readFrame(bytes.NewReader([]byte{0, 0, 0, 1, 0xff}))
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeSerialization), qt.IsTrue)
}

func TestHandshake(t *testing.T) {
	h := &echoHandler{}
	c, _ := session(t, h, Options{Capabilities: []string{"premium"}})
	qt.Check(t, c.Kind(), qt.Equals, "remote")
	qt.Check(t, c.Info().Engine, qt.Equals, "echo")
	qt.Check(t, c.Info().HasCapability("premium"), qt.IsTrue)
	h.mu.Lock()
	defer h.mu.Unlock()
	qt.Check(t, h.hello.Name, qt.Equals, "pinflow")
	qt.Check(t, h.hello.Client, qt.Equals, c.SessionID())
}

func TestServeRequiresHello(t *testing.T) {
	server, conn := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), server, &echoHandler{}) }()
	go writeFrame(conn, &pfapi.Message{Request: &pfapi.Request{Op: opEcho.Name, Args: []pfapi.Value{}}})
	err := <-done
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
	conn.Close()
}

func TestInvoke(t *testing.T) {
	c, _ := session(t, &echoHandler{}, Options{ClientName: "tests"})
	ctx := context.Background()
	v, err := c.Invoke(ctx, transport.Call{Op: opEcho, Args: []pfapi.Value{pfapi.DoubleValue(2.5)}})
	qt.Assert(t, err, qt.IsNil)
	d, err := v.AsDouble()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d, qt.Equals, 2.5)

	v, err = c.Invoke(ctx, transport.Call{Op: opEcho})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, v.IsNone(), qt.IsTrue)

	_, err = c.Invoke(ctx, transport.Call{Op: opFail})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
}

func TestConcurrentCalls(t *testing.T) {
	c, _ := session(t, &echoHandler{}, Options{})
	var wg sync.WaitGroup
	results := make([]int64, 16)
	errs := make([]error, 16)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Invoke(context.Background(), transport.Call{Op: opEcho, Args: []pfapi.Value{pfapi.Int64Value(int64(i))}})
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = v.AsInt()
		}()
	}
	wg.Wait()
	for i := range results {
		qt.Check(t, errs[i], qt.IsNil)
		qt.Check(t, results[i], qt.Equals, int64(i))
	}
}

func TestProgressFrames(t *testing.T) {
	c, _ := session(t, &echoHandler{}, Options{})
	events := make(chan pfapi.Progress, 8)
	ctx := transport.WithProgress(context.Background(), events)
	_, err := c.Invoke(ctx, transport.Call{Op: opEcho})
	qt.Assert(t, err, qt.IsNil)
	close(events)
	var done []int64
	for p := range events {
		qt.Check(t, p.Label, qt.Equals, opEcho.Name)
		done = append(done, p.Done)
	}
	qt.Check(t, done, qt.DeepEquals, []int64{1, 2, 3})
}

func TestCancelledCall(t *testing.T) {
	h := &echoHandler{release: make(chan struct{})}
	c, _ := session(t, h, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Invoke(ctx, transport.Call{Op: opBlock})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)

	// the late response is dropped and the session stays usable
	close(h.release)
	_, err = c.Invoke(context.Background(), transport.Call{Op: opEcho})
	qt.Check(t, err, qt.IsNil)
}

func TestLostSession(t *testing.T) {
	c, cancel := session(t, &echoHandler{}, Options{})
	cancel()
	<-c.done
	_, err := c.Invoke(context.Background(), transport.Call{Op: opEcho})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
	_, err = c.Invoke(context.Background(), transport.Call{Op: opEcho})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
	qt.Check(t, c.Close(), qt.IsNil)
	qt.Check(t, c.Close(), qt.IsNil)
}

func TestDialRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	qt.Assert(t, err, qt.IsNil)
	addr := l.Addr().String()
	l.Close()
	_, err = Dial(context.Background(), addr, Options{DialTimeout: time.Second})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
}
