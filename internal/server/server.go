package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"github.com/ivlev/storyrig/internal/config"
	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/driver"
	"github.com/ivlev/storyrig/internal/engine"
	"github.com/ivlev/storyrig/internal/renderer"
	"github.com/ivlev/storyrig/internal/source"
)

// Message is exchanged over /ws in both directions. Clients send scroll,
// scrub, jump, mode and reducedMotion; the server sends frame, status and
// reload.
type Message struct {
	Type string `json:"type"`

	*source.ScrollEvent
	Progress *float64 `json:"progress,omitempty"`
	Chapter  string   `json:"chapter,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Enabled  bool     `json:"enabled,omitempty"`

	Frame  *engine.Frame `json:"frame,omitempty"`
	Status *Status       `json:"status,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Status mirrors driver.Status with readable names.
type Status struct {
	Mode     string  `json:"mode"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Target   float64 `json:"target"`
	Clients  int     `json:"clients"`
}

// Server is the preview server: it runs one engine and one driver, streams
// frames to every connected client and reloads the project when its file
// changes.
type Server struct {
	cfg         *config.Config
	projectPath string
	engine      *engine.Engine
	driver      *driver.Driver
	scroll      *source.ChanSource
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    engine.Frame
	sent    bool
}

type client struct {
	conn *websocket.Conn
	send chan Message

	mu     sync.Mutex
	closed bool
}

// New creates a server over an engine that already has a project loaded.
// projectPath is watched for changes when cfg.Server.Watch is set.
func New(cfg *config.Config, eng *engine.Engine, projectPath string) *Server {
	s := &Server{
		cfg:         cfg,
		projectPath: projectPath,
		engine:      eng,
		driver: driver.New(driver.Options{
			SmoothTime:    cfg.Damping.SmoothTime,
			MaxSpeed:      cfg.Damping.MaxSpeed,
			ReducedMotion: cfg.Damping.ReducedMotion,
		}),
		scroll:  source.NewChanSource(8),
		clients: make(map[*client]struct{}),
	}
	s.driver.SetMode(driver.ModePreview, s.scroll)
	return s
}

// Driver exposes the progress driver, e.g. to jump from the CLI.
func (s *Server) Driver() *driver.Driver {
	return s.driver
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/project.json", s.handleProject)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/preview", s.handlePreview)
	return mux
}

// Start runs the render loop and the project watcher until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		err := s.engine.Loop(ctx, s.driver, nil, s.cfg.FPS, s.onFrame)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[!] Render loop stopped: %v", err)
		}
	}()
	if s.cfg.Server.Watch && s.projectPath != "" {
		go func() {
			if err := s.watch(ctx); err != nil {
				log.Printf("[!] Project watcher stopped: %v", err)
			}
		}()
	}
}

// Run serves on cfg.Server.Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(ctx)

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	s.announce()
	err := srv.ListenAndServe()
	s.closeClients()
	s.driver.Close()
	s.scroll.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// URL is the address clients should open.
func (s *Server) URL() string {
	if s.cfg.Server.PublicURL != "" {
		return s.cfg.Server.PublicURL
	}
	return "http://" + s.cfg.Server.Addr
}

// announce prints the URL with a QR code for phones and optionally saves the
// code as PNG.
func (s *Server) announce() {
	url := s.URL()
	fmt.Printf("[*] Preview server: %s\n", url)
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		log.Printf("[!] QR code: %v", err)
		return
	}
	fmt.Println(q.ToSmallString(false))
	if path := s.cfg.Server.QRCodePath; path != "" {
		if err := qrcode.WriteFile(url, qrcode.Medium, 256, path); err != nil {
			log.Printf("[!] QR code %s: %v", path, err)
		} else {
			fmt.Printf("[*] QR code saved: %s\n", path)
		}
	}
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Project()
	if p == nil {
		http.Error(w, "no project loaded", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := director.EncodeProject(w, p); err != nil {
		log.Printf("[!] /project.json: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	opt := renderer.DefaultPreviewOptions()
	opt.Width, opt.Height = s.cfg.Preview.Width, s.cfg.Preview.Height
	opt.Samples, opt.Supersample = s.cfg.Preview.Samples, s.cfg.Preview.Supersample

	img, err := renderer.RenderPreview(s.engine.Paths(), opt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	format := s.cfg.Preview.Format
	if f := r.URL.Query().Get("format"); f != "" {
		format = f
	}
	w.Header().Set("Content-Type", "image/"+format)
	if err := renderer.EncodePreview(w, img, format); err != nil {
		log.Printf("[!] /preview: %v", err)
	}
}

func (s *Server) status() Status {
	st := s.driver.Status()
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	return Status{
		Mode:     st.Mode.String(),
		State:    st.State.String(),
		Progress: st.Progress,
		Target:   st.Target,
		Clients:  n,
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[!] websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan Message, 16)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	last, sent := s.last, s.sent
	s.mu.Unlock()

	go c.writeLoop()
	st := s.status()
	c.push(Message{Type: "status", Status: &st})
	if sent {
		c.push(Message{Type: "frame", Frame: &last})
	}

	defer s.drop(c)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.handle(msg); err != nil {
			c.push(Message{Type: "error", Error: err.Error()})
		}
	}
}

// handle applies one client message to the driver.
func (s *Server) handle(msg Message) error {
	switch msg.Type {
	case "scroll":
		if msg.ScrollEvent == nil {
			return fmt.Errorf("scroll without position")
		}
		s.scroll.Push(*msg.ScrollEvent)
	case "scrub":
		if msg.Progress == nil {
			return fmt.Errorf("scrub without progress")
		}
		s.driver.Scrub(*msg.Progress)
	case "jump":
		p, err := s.jumpTarget(msg)
		if err != nil {
			return err
		}
		s.driver.JumpTo(p)
	case "mode":
		mode, err := driver.ParseMode(msg.Mode)
		if err != nil {
			return err
		}
		s.driver.SetMode(mode, s.scroll)
	case "reducedMotion":
		s.driver.SetReducedMotion(msg.Enabled)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	s.broadcast(Message{Type: "status", Status: ptr(s.status())})
	return nil
}

func (s *Server) jumpTarget(msg Message) (float64, error) {
	if msg.Chapter == "" {
		if msg.Progress == nil {
			return 0, fmt.Errorf("jump needs a chapter or a progress")
		}
		return *msg.Progress, nil
	}
	p := s.engine.Project()
	if p == nil {
		return 0, engine.ErrNoChapters
	}
	ch, ok := p.Chapter(msg.Chapter)
	if !ok {
		return 0, fmt.Errorf("jump to %q: %w", msg.Chapter, director.ErrUnknownChapter)
	}
	return ch.StartProgress, nil
}

// onFrame runs on the render tick. Frames are only sent when they changed.
func (s *Server) onFrame(f engine.Frame, err error) {
	s.mu.Lock()
	changed := !s.sent || f.Progress != s.last.Progress || f.ChapterID != s.last.ChapterID || f.Stale != s.last.Stale || f.ChapterChanged
	if changed {
		s.last, s.sent = f, true
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	msg := Message{Type: "frame", Frame: &f}
	if err != nil {
		msg.Error = err.Error()
	}
	s.broadcast(msg)
}

// resend forces the next tick to broadcast, e.g. after a reload.
func (s *Server) resend() {
	s.mu.Lock()
	s.sent = false
	s.mu.Unlock()
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.push(msg)
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// push queues msg without blocking the render loop. A client too slow to
// drain its queue misses frames; a closed client drops everything.
func (c *client) push(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// close ends the write loop. It may be called from the read loop and from
// shutdown concurrently.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func ptr[T any](v T) *T { return &v }
