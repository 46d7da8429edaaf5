// Package live bridges remote renderers to canvas sessions over websockets.
// Renderers stream pointer samples and control commands as binary frames and
// receive intents and frames back as JSON text messages.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/model"
)

// Workspace is the application context shared by every live session
type Workspace interface {
	intent.Handler
	Snapshot(ctx context.Context) (model.Snapshot, model.Cursor, error)
}

// Options configures a Server
type Options struct {
	Logger       *slog.Logger
	Canvas       *canvas.Options // OnFrame is replaced per session
	PingInterval time.Duration   // default 54s
	ReadTimeout  time.Duration   // default 60s, extended by every pong
	WriteTimeout time.Duration   // default 10s
	CheckOrigin  func(r *http.Request) bool
}

// Server manages live sessions
type Server struct {
	opts     Options
	ws       Workspace
	upgrader websocket.Upgrader
	log      *slog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a live server backed by ws
func NewServer(ws Workspace, opts *Options) *Server {
	o := Options{PingInterval: 54 * time.Second, ReadTimeout: 60 * time.Second, WriteTimeout: 10 * time.Second}
	if opts != nil {
		o.Logger, o.Canvas, o.CheckOrigin = opts.Logger, opts.Canvas, opts.CheckOrigin
		if opts.PingInterval > 0 {
			o.PingInterval = opts.PingInterval
		}
		if opts.ReadTimeout > 0 {
			o.ReadTimeout = opts.ReadTimeout
		}
		if opts.WriteTimeout > 0 {
			o.WriteTimeout = opts.WriteTimeout
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	checkOrigin := o.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts: o,
		ws:   ws,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log:      o.Logger,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HandleWebSocket upgrades the request and runs a session under id. A
// reconnect with the same id replaces the previous connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	snap, cur, err := s.ws.Snapshot(r.Context())
	if err != nil {
		s.log.Error("failed to load workspace", "session", id, "error", err)
		http.Error(w, "Workspace unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "session", id, "error", err)
		return
	}

	sess := s.newSession(id, conn)
	sess.canvas.Load(snap)
	sess.canvas.SetCursor(cur.Current)

	s.mu.Lock()
	if old, ok := s.sessions[id]; ok {
		old.close()
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	go sess.run(s.ctx)
}

// GetSession returns the session registered under id
func (s *Server) GetSession(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Count is the number of connected sessions
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) remove(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.ID] == sess {
		delete(s.sessions, sess.ID)
	}
}

// Reload reads the workspace once and loads it into every session
func (s *Server) Reload(ctx context.Context) error {
	snap, cur, err := s.ws.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workspace: %w", err)
	}

	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	for _, sess := range list {
		err := sess.do(ctx, func(c *canvas.Session) {
			c.Load(snap)
			c.SetCursor(cur.Current)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sess.log.Debug("reload skipped", "error", err)
		}
	}
	return nil
}

// Close disconnects every session
func (s *Server) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
}

// Session is one connected renderer and the canvas it drives
type Session struct {
	ID string

	server *Server
	conn   *websocket.Conn
	canvas *canvas.Session
	bus    *intent.Bus
	log    *slog.Logger

	sendChan     chan []byte
	sendTextChan chan []byte
	frameReady   chan struct{}
	latest       atomic.Pointer[canvas.Frame]
	closeChan    chan struct{}
	closeOnce    sync.Once
	// done is cancelled by close so canvas commands stop waiting
	done    context.Context
	stop    context.CancelFunc
	stopped chan struct{}
}

func (s *Server) newSession(id string, conn *websocket.Conn) *Session {
	sess := &Session{
		ID:           id,
		server:       s,
		conn:         conn,
		log:          s.log.With("session", id),
		sendChan:     make(chan []byte, 64),
		sendTextChan: make(chan []byte, 256),
		frameReady:   make(chan struct{}, 1),
		closeChan:    make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	sess.done, sess.stop = context.WithCancel(context.Background())

	var co canvas.Options
	if s.opts.Canvas != nil {
		co = *s.opts.Canvas
	}
	co.OnFrame = sess.queueFrame

	sess.bus = intent.NewBus(intent.HandlerFunc(sess.apply), 0)
	sess.bus.SetErrorHandler(func(i intent.Intent, err error) {
		sess.log.Warn("intent failed", "intent", i.Kind(), "error", err)
		sess.sendMessage(Message{Type: MessageError, Error: err.Error()})
	})
	sess.canvas = canvas.New(sess.bus, &co)
	return sess
}

// Canvas exposes the session's canvas. Only touch it through Do.
func (s *Session) Canvas() *canvas.Session {
	return s.canvas
}

func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		// deregister first so intents still draining do not reload this
		// session's stopped canvas
		s.server.remove(s)
		s.close()
		cancel()
		s.bus.Wait()
		s.canvas.Close()
		close(s.stopped)
		s.log.Info("disconnected")
	}()

	go s.writer(ctx)
	s.bus.Start(ctx)
	go func() {
		if err := s.canvas.Run(ctx); err != nil {
			s.log.Error("canvas stopped", "error", err)
		}
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.server.opts.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.server.opts.ReadTimeout))
		return nil
	})

	s.sendControl(CmdHello)
	s.log.Info("connected")

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("read failed", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleBinaryMessage(ctx, data)
		case websocket.TextMessage:
			s.log.Debug("ignoring text message", "bytes", len(data))
		}
	}
}

func (s *Session) handleBinaryMessage(ctx context.Context, data []byte) {
	if len(data) == 0 {
		return
	}

	switch MessageType(data[0]) {
	case FrameSample:
		sample, err := DecodeSample(data)
		if err != nil {
			s.log.Warn("bad sample frame", "error", err)
			return
		}
		if err := s.canvas.Send(ctx, sample); err != nil {
			s.log.Debug("sample dropped", "error", err)
		}

	case FrameControl:
		cmd, err := DecodeControl(data)
		if err != nil {
			s.log.Warn("bad control frame", "error", err)
			return
		}
		s.handleControl(ctx, cmd)

	default:
		s.log.Warn("unknown frame type", "type", data[0])
	}
}

func (s *Session) handleControl(ctx context.Context, cmd Command) {
	s.log.Debug("control", "command", cmd.String())

	var fn func(c *canvas.Session)
	switch cmd.Name {
	case CmdHello:
		return
	case CmdPing:
		s.sendControl(CmdPong)
		return
	case CmdReset:
		fn = func(c *canvas.Session) { c.Reset() }
	case CmdCenter:
		fn = func(c *canvas.Session) { c.Center() }
	case CmdFit:
		fn = func(c *canvas.Session) { c.FitAll() }
	case CmdSeeThrough:
		fn = func(c *canvas.Session) { c.ToggleSeeThrough() }
	case CmdLink:
		fn = func(c *canvas.Session) { c.SetLinking(!c.Link().Active) }
	case CmdBack:
		fn = func(c *canvas.Session) { c.Back() }
	case CmdAlign:
		kind, err := geometry.ParseAlignment(cmd.Arg)
		if err != nil {
			s.log.Warn("bad alignment", "error", err)
			return
		}
		fn = func(c *canvas.Session) { c.Align(kind) }
	case CmdViewport:
		w, h, err := parseSize(cmd.Arg)
		if err != nil {
			s.log.Warn("bad viewport size", "error", err)
			return
		}
		fn = func(c *canvas.Session) { c.SetViewport(w, h) }
	default:
		s.log.Warn("unknown control command", "command", cmd.Name)
		return
	}
	if err := s.do(ctx, fn); err != nil {
		s.log.Debug("control dropped", "command", cmd.Name, "error", err)
	}
}

// do runs fn on the canvas goroutine, giving up when ctx is done or the
// session closes
func (s *Session) do(ctx context.Context, fn func(*canvas.Session)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.done, cancel)
	defer stop()
	return s.canvas.Do(ctx, fn)
}

func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected <width>x<height>, got %q", s)
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("viewport size must be positive, got %q", s)
	}
	return w, h, nil
}

// apply runs in the application context: report the intent to the
// renderer, persist it, then push the new state to every session
func (s *Session) apply(ctx context.Context, i intent.Intent) error {
	if data, err := intent.Marshal(i); err == nil {
		s.sendMessage(Message{Type: MessageIntent, Intent: data})
	}
	if err := s.server.ws.Apply(ctx, i); err != nil {
		return err
	}
	return s.server.Reload(ctx)
}

// queueFrame keeps only the newest frame; the writer sends it when it can
func (s *Session) queueFrame(f canvas.Frame) {
	s.latest.Store(&f)
	select {
	case s.frameReady <- struct{}{}:
	default:
	}
}

func (s *Session) writer(ctx context.Context) {
	ticker := time.NewTicker(s.server.opts.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	timeout := s.server.opts.WriteTimeout
	write := func(kind int, data []byte) bool {
		s.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := s.conn.WriteMessage(kind, data); err != nil {
			s.log.Warn("write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case data := <-s.sendChan:
			if !write(websocket.BinaryMessage, data) {
				return
			}

		case data := <-s.sendTextChan:
			if !write(websocket.TextMessage, data) {
				return
			}

		case <-s.frameReady:
			f := s.latest.Load()
			if f == nil {
				continue
			}
			data, err := json.Marshal(Message{Type: MessageFrame, Frame: f})
			if err != nil {
				s.log.Error("failed to encode frame", "error", err)
				continue
			}
			if !write(websocket.TextMessage, data) {
				return
			}

		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}

		case <-ctx.Done():
			return
		case <-s.closeChan:
			return
		}
	}
}

func (s *Session) sendControl(cmd string) {
	select {
	case s.sendChan <- EncodeControl(cmd):
	case <-s.closeChan:
	}
}

func (s *Session) sendMessage(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		s.log.Error("failed to encode message", "type", m.Type, "error", err)
		return
	}
	select {
	case s.sendTextChan <- data:
	case <-s.closeChan:
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.stop()
		close(s.closeChan)
		s.conn.Close()
	})
}
