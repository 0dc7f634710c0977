package comm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

var ErrPortClosed = errors.New("comm: port closed")

// TransportError reports a failed read, write or open on the serial link.
// Unwrap returns the underlying error untouched.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("comm: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// Port serializes access to a duplex connection: at most one Read or Write
// is in progress at any time. The connection must time out its reads,
// otherwise a pending Read starves writers.
type Port struct {
	mu     sync.Mutex
	conn   io.ReadWriteCloser
	closed bool
}

func NewPort(conn io.ReadWriteCloser) *Port {
	return &Port{conn: conn}
}

// Open opens and configures a serial port.
func Open(cfg Config) (*Port, error) {
	conn, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, &TransportError{Op: "open " + cfg.Name, Err: err}
	}
	return NewPort(conn), nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.conn.Write(b)
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.conn.Read(b)
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// Send frames op and args and writes them to w in a single Write. Failures
// come back as *TransportError and are not retried.
func Send(w io.Writer, op Opcode, args []byte) error {
	if _, ok := opcodeNames[op]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownCommand, op)
	}
	b := Encode(op, args)
	n, err := w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// errIdle reports a read that timed out without data.
var errIdle = errors.New("comm: read timed out")

// staleFrameAfter is how long a partial frame may sit in the read buffer
// before its start byte is treated as noise.
const staleFrameAfter = 250 * time.Millisecond

// pollReader reports read timeouts (zero bytes, nil or io.EOF) as errIdle so
// the read loop can notice a frame that will never complete.
type pollReader struct {
	port *Port
	done <-chan struct{}
}

func (r pollReader) Read(b []byte) (int, error) {
	n, err := r.port.Read(b)
	if n > 0 || (err != nil && err != io.EOF) {
		return n, err
	}
	select {
	case <-r.done:
		return 0, ErrPortClosed
	default:
		runtime.Gosched()
		return 0, errIdle
	}
}

// Worker owns a port: it writes queued commands and decodes device frames.
type Worker struct {
	Commands chan<- Command
	Messages <-chan Message
	// Errors receives the first transport failure of each direction. The
	// worker keeps no retry state; reopening the port is up to the caller.
	Errors <-chan error

	port *Port
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func Start(port *Port, logger zerolog.Logger) *Worker {
	cmdChan := make(chan Command, 8)
	msgChan := make(chan Message, 8)
	errChan := make(chan error, 2)
	w := &Worker{
		Commands: cmdChan,
		Messages: msgChan,
		Errors:   errChan,
		port:     port,
		done:     make(chan struct{}),
	}
	w.wg.Add(2)
	go w.readLoop(msgChan, errChan, logger)
	go w.writeLoop(cmdChan, errChan, logger)
	return w
}

func (w *Worker) readLoop(msgChan chan<- Message, errChan chan<- error, logger zerolog.Logger) {
	defer w.wg.Done()
	reader := bufio.NewReader(pollReader{port: w.port, done: w.done})
	// pendingSince is when the buffered partial frame last grew.
	var pendingSince time.Time
	var pending int
	for {
		msg, err := ReadFrame(reader)
		switch {
		case errors.Is(err, errIdle):
			if n := reader.Buffered(); n == 0 || n != pending {
				pending = n
				pendingSince = time.Now()
				continue
			}
			if time.Since(pendingSince) > staleFrameAfter {
				logger.Warn().Int("buffered", reader.Buffered()).Msg("dropping incomplete device frame")
				reader.Discard(1)
				pending = 0
			}
			continue
		case errors.Is(err, ErrPortClosed):
			return
		case errors.Is(err, ErrChecksum), errors.Is(err, ErrMalformedFrame):
			logger.Warn().Err(err).Msg("dropping device frame")
			continue
		case err != nil:
			errChan <- &TransportError{Op: "read", Err: err}
			return
		}
		pending = 0
		logger.Debug().Stringer("message", msg).Msg("device frame")
		select {
		case msgChan <- msg:
		case <-w.done:
			return
		}
	}
}

func (w *Worker) writeLoop(cmdChan <-chan Command, errChan chan<- error, logger zerolog.Logger) {
	defer w.wg.Done()
	for {
		select {
		case cmd := <-cmdChan:
			logger.Debug().Stringer("opcode", cmd.Opcode).Int("args", len(cmd.Args)).Msg("sending command")
			if err := Send(w.port, cmd.Opcode, cmd.Args); err != nil {
				if errors.Is(err, ErrPortClosed) {
					return
				}
				if errors.Is(err, ErrUnknownCommand) {
					logger.Error().Err(err).Msg("dropping command")
					continue
				}
				errChan <- err
				return
			}
		case <-w.done:
			return
		}
	}
}

// Stop closes the port and waits for both loops to exit.
func (w *Worker) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.port.Close()
		w.wg.Wait()
	})
	return err
}
