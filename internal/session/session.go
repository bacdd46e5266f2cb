// Package session drives one client connection through its full lifecycle:
// an ingress loop that reads control and audio frames off the wire, and a
// worker loop that transcribes queued audio and writes transcripts back.
//
// The two loops run as a goroutine pair joined by an [errgroup.Group], the
// same pairing idiom used elsewhere in this module's dependency graph for
// joining a fixed set of concurrent subtasks.
package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/riftwave/voxgate/internal/codec"
	"github.com/riftwave/voxgate/internal/engine"
	"github.com/riftwave/voxgate/internal/queue"
)

// Conn is the duplex message transport a Session drives. *websocket.Conn
// satisfies it directly; tests substitute a fake to exercise the loops
// without a real network connection.
//
// Reader, not Read, is the ingress primitive: the ingress loop drains each
// message through a pooled scratch buffer (see readFrame) instead of
// letting the transport allocate a fresh slice per message.
type Conn interface {
	Reader(ctx context.Context) (websocket.MessageType, io.Reader, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// framePool holds scratch buffers reused across ingress reads, avoiding a
// fresh allocation for every frame on a long-lived, high-throughput
// connection.
var framePool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// readFrame reads one complete message from r into a freshly copied slice,
// using a pooled buffer as scratch space so steady-state ingress does not
// allocate a new buffer per frame.
func readFrame(r io.Reader) ([]byte, error) {
	buf := framePool.Get().(*bytes.Buffer)
	buf.Reset()
	defer framePool.Put(buf)

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}

// Engine is the one operation a Session needs from the transcription
// backend. [*engine.Adapter] satisfies it.
type Engine interface {
	Transcribe(ctx context.Context, payload []byte, language string) (string, error)
}

// State is a Session's lifecycle stage. Transitions are monotonic:
// Running -> Draining -> Terminated.
type State int32

const (
	Running State = iota
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session owns one connection's ingress and worker loops. The two loops
// share only the language field (single-writer, ingress; single-reader,
// worker), the AudioQueue, and the connection's write side, which only the
// worker loop uses while the loops run; the ingress loop never writes.
type Session struct {
	conn   Conn
	engine Engine
	queue  *queue.AudioQueue

	state atomic.Int32
	lang  atomic.Pointer[string]

	disposeOnce sync.Once
	disposed    atomic.Bool

	// disposeHook, when set, is invoked once per payload popped from the
	// queue, after processing completes. Tests use it to assert the
	// "exactly one disposal per enqueued payload" property; production
	// sessions leave it nil, since a popped []byte needs no action beyond
	// going out of scope for the garbage collector to reclaim it.
	disposeHook func([]byte)
}

// New constructs a Session bound to conn and eng. The Session owns conn for
// the duration of Run and Dispose; callers must not use conn concurrently.
func New(conn Conn, eng Engine) *Session {
	return &Session{
		conn:   conn,
		engine: eng,
		queue:  queue.New(),
	}
}

// State reports the Session's current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) language() string {
	if p := s.lang.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) setLanguage(l string) { s.lang.Store(&l) }

// Run drives the session to completion: it starts the ingress and worker
// loops, waits for both to exit, then closes the connection with normal
// closure and reason "session end" if it has not already been disposed.
// Run blocks until both loops have exited; every failure mode encountered
// along the way is logged internally and resolved to session termination,
// never propagated to the caller.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.ingressLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.workerLoop(gctx)
		return nil
	})
	_ = g.Wait()

	s.setState(Terminated)
	if !s.disposed.Load() {
		_ = s.conn.Close(websocket.StatusNormalClosure, "session end")
	}
}

// ingressLoop reads frames until a close frame, an "end" control message,
// cancellation, or a transport error, then closes the AudioQueue writer and
// returns. Fragmented binary messages are already reassembled into one
// complete message per Reader call by the underlying transport; there is no
// separate reassembly step to perform here.
func (s *Session) ingressLoop(ctx context.Context) {
	defer s.queue.Close()

	for {
		if ctx.Err() != nil {
			s.setState(Draining)
			return
		}

		typ, r, err := s.conn.Reader(ctx)
		if err != nil {
			s.logIngressReadError(ctx, err)
			s.setState(Draining)
			return
		}
		data, err := readFrame(r)
		if err != nil {
			slog.Error("session: read message body failed", "error", err)
			s.setState(Draining)
			return
		}

		switch typ {
		case websocket.MessageText:
			ctrl := codec.DecodeControl(data)
			if ctrl.Language != nil {
				s.setLanguage(*ctrl.Language)
			}
			if ctrl.EndRequested {
				s.setState(Draining)
				return
			}

		case websocket.MessageBinary:
			if err := s.queue.Write(ctx, data); err != nil {
				s.setState(Draining)
				return
			}
		}
	}
}

// logIngressReadError classifies a Reader failure: a close frame and a
// cancelled context are expected shutdown signals and are never logged as
// errors; anything else is a transport error and is logged with its cause.
func (s *Session) logIngressReadError(ctx context.Context, err error) {
	if websocket.CloseStatus(err) != -1 {
		return
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	slog.Error("session: transport read failed", "error", err)
}

// workerLoop drains the AudioQueue in order, transcribing each payload and
// emitting a transcript frame for any non-empty result. It is the sole
// writer to conn during normal operation, keeping egress single-threaded
// without needing a send mutex.
func (s *Session) workerLoop(ctx context.Context) {
	for payload := range s.queue.ReadAll() {
		if ctx.Err() != nil {
			s.dispose(payload)
			break
		}

		text, err := s.engine.Transcribe(ctx, payload, s.language())
		if err != nil {
			if errors.Is(err, engine.ErrCancelled) {
				s.dispose(payload)
				break
			}
			slog.Error("session: transcribe failed", "error", err)
			s.bestEffortSend(ctx, codec.EncodeError("transcription failed"))
			s.dispose(payload)
			continue
		}
		s.dispose(payload)

		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := s.conn.Write(ctx, websocket.MessageText, codec.EncodeTranscript(text)); err != nil {
			slog.Error("session: send transcript failed", "error", err)
			break
		}
	}
}

func (s *Session) dispose(payload []byte) {
	if s.disposeHook != nil {
		s.disposeHook(payload)
	}
}

// bestEffortSend writes data to conn, logging (not raising) any failure.
// Used only for error notifications on paths that have already decided to
// continue or terminate regardless of whether the send succeeds.
func (s *Session) bestEffortSend(ctx context.Context, data []byte) {
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Warn("session: best-effort send failed", "error", err)
	}
}

// Dispose releases the session's resources: it closes the AudioQueue writer
// (idempotent with ingressLoop's own close), draining and disposing any
// payloads still buffered, and closes the connection. Idempotent; safe to
// call from an unwind path regardless of whether Run has returned.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.disposed.Store(true)
		s.queue.Close()
		for payload := range s.queue.ReadAll() {
			s.dispose(payload)
		}
		_ = s.conn.Close(websocket.StatusNormalClosure, "session end")
	})
}
