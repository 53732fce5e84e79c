package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/qianzhou/goso/internal/protocol"
	"github.com/qianzhou/goso/pkg/metrics"
)

// ConnState tracks where a connection is in its request cycle.
type ConnState int32

const (
	StateReading ConnState = iota
	StateProcessing
	StateWriting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateProcessing:
		return "processing"
	case StateWriting:
		return "writing"
	default:
		return "closed"
	}
}

// conn is the per-connection state owned by the reactor.
type conn struct {
	id       int
	nc       net.Conn
	readBuf  []byte
	outbound chan []byte
	state    atomic.Int32
	closed   chan struct{}
	once     sync.Once
}

func (c *conn) setState(s ConnState) {
	c.state.Store(int32(s))
}

// completion carries a finished response from a worker back to the
// reactor, playing the role of the wakeup queue.
type completion struct {
	connID int
	data   []byte
}

// Reactor owns the listener and every connection: it accepts, reads and
// decodes request frames, hands them to the worker pool, and writes the
// completed responses back. Workers never touch sockets; they post
// completions onto the pending queue, which the reactor drains in FIFO
// order.
type Reactor struct {
	addr       string
	listener   net.Listener
	pool       *Pool
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	conns  map[int]*conn
	nextID int

	pending  chan completion
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReactor creates a Reactor serving addr. m may be nil.
func NewReactor(addr string, pool *Pool, dispatcher *Dispatcher, m *metrics.Metrics) *Reactor {
	return &Reactor{
		addr:       addr,
		pool:       pool,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     slog.Default().With("component", "reactor"),
		conns:      make(map[int]*conn),
		pending:    make(chan completion, 1024),
		done:       make(chan struct{}),
	}
}

// Listen binds the server socket. It is separate from Run so bind
// failures surface before the process daemonizes.
func (r *Reactor) Listen() error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", r.addr, err)
	}
	r.listener = ln
	r.logger.Info("server listening", "addr", r.addr)
	return nil
}

// Addr returns the bound listen address, or "" before Listen.
func (r *Reactor) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Run accepts connections until Stop is called.
func (r *Reactor) Run() error {
	if r.listener == nil {
		return fmt.Errorf("reactor not listening")
	}
	r.wg.Add(1)
	go r.drainCompletions()

	for {
		nc, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Error("accept failed", "error", err)
			continue
		}
		r.register(nc)
	}
}

func (r *Reactor) register(nc net.Conn) {
	c := &conn{
		nc:       nc,
		outbound: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
	r.mu.Lock()
	r.nextID++
	c.id = r.nextID
	r.conns[c.id] = c
	open := len(r.conns)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(float64(open))
	}
	r.logger.Info("connection accepted", "conn_id", c.id, "remote", nc.RemoteAddr().String(), "open", open)

	r.wg.Add(2)
	go r.readLoop(c)
	go r.writeLoop(c)
}

// readLoop drains the socket into the connection's read buffer and
// decodes frames. Submitting to a full worker pool blocks here, which
// stops reads on this connection until the pool drains.
func (r *Reactor) readLoop(c *conn) {
	defer r.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.readBuf = append(c.readBuf, buf[:n]...)
			frames, consumed := protocol.Decode(c.readBuf)
			if consumed > 0 {
				c.readBuf = append(c.readBuf[:0:0], c.readBuf[consumed:]...)
			}
			r.countDecoded(frames, consumed)
			for _, frame := range frames {
				c.setState(StateProcessing)
				if submitErr := r.submit(c, frame); submitErr != nil {
					r.closeConn(c, "pool closed")
					return
				}
			}
		}
		if err != nil {
			reason := "peer closed"
			if err != io.EOF {
				reason = err.Error()
			}
			r.closeConn(c, reason)
			return
		}
	}
}

func (r *Reactor) submit(c *conn, frame protocol.Frame) error {
	return r.pool.Submit(func() {
		data := r.dispatcher.Dispatch(frame)
		select {
		case r.pending <- completion{connID: c.id, data: data}:
		case <-r.done:
		}
	})
}

// drainCompletions moves finished responses from the pending queue into
// the owning connection's write queue, in FIFO order.
func (r *Reactor) drainCompletions() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case comp := <-r.pending:
			r.deliver(comp)
		}
	}
}

func (r *Reactor) deliver(comp completion) {
	r.mu.Lock()
	c, ok := r.conns[comp.connID]
	r.mu.Unlock()
	if !ok {
		return
	}
	c.setState(StateWriting)
	select {
	case c.outbound <- comp.data:
	case <-c.closed:
	case <-r.done:
	}
}

// writeLoop flushes queued responses. net.Conn.Write resumes partial
// writes internally; an error closes the connection.
func (r *Reactor) writeLoop(c *conn) {
	defer r.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.outbound:
			if _, err := c.nc.Write(data); err != nil {
				r.closeConn(c, fmt.Sprintf("write failed: %v", err))
				return
			}
			if len(c.outbound) == 0 {
				c.setState(StateReading)
			}
		}
	}
}

func (r *Reactor) closeConn(c *conn, reason string) {
	c.once.Do(func() {
		c.setState(StateClosed)
		close(c.closed)
		c.nc.Close()

		r.mu.Lock()
		delete(r.conns, c.id)
		open := len(r.conns)
		r.mu.Unlock()

		if r.metrics != nil {
			r.metrics.ActiveConnections.Set(float64(open))
		}
		r.logger.Info("connection closed", "conn_id", c.id, "reason", reason, "open", open)
	})
}

func (r *Reactor) countDecoded(frames []protocol.Frame, consumed int) {
	if r.metrics == nil {
		return
	}
	framed := 0
	for _, f := range frames {
		framed += protocol.HeaderSize + len(f.Payload)
	}
	r.metrics.FramesDecoded.Add(float64(len(frames)))
	if skipped := consumed - framed; skipped > 0 {
		r.metrics.FramesResynced.Add(float64(skipped))
	}
}

// OpenConnections returns the number of live connections.
func (r *Reactor) OpenConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Stop shuts the reactor down: stop accepting, drain the worker pool so
// in-flight responses are produced, flush them, then close every
// connection.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		if r.listener != nil {
			r.listener.Close()
		}
		r.pool.Shutdown()

		// deliver responses already produced before tearing down
		for {
			select {
			case comp := <-r.pending:
				r.deliver(comp)
				continue
			default:
			}
			break
		}
		close(r.done)

		r.mu.Lock()
		conns := make([]*conn, 0, len(r.conns))
		for _, c := range r.conns {
			conns = append(conns, c)
		}
		r.mu.Unlock()
		for _, c := range conns {
			r.closeConn(c, "server shutdown")
		}
		r.wg.Wait()
		r.logger.Info("reactor stopped")
	})
}
