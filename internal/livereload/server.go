// Package livereload serves the destination tree over HTTP and pushes
// change notifications to connected browsers over a websocket.
package livereload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// SocketPath is the websocket endpoint browsers subscribe to.
	SocketPath = "/__sitepipe/ws"
	// ScriptPath serves the injected client script.
	ScriptPath = "/__sitepipe/client.js"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
	writeWait         = 5 * time.Second
)

// Message is pushed to observers when artifacts change. No
// acknowledgement is expected.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

// Logger receives diagnostic lines.
type Logger interface {
	Log(format string, args ...interface{})
}

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// CORS adds a permissive Access-Control-Allow-Origin header.
	CORS bool
	// Debug receives diagnostics; nil discards.
	Debug Logger
}

// Server is a static file server with live reload. It implements
// sink.Notifier.
type Server struct {
	root     string
	opts     Options
	hub      *hub
	upgrader websocket.Upgrader

	listener net.Listener
	srv      *http.Server
}

// New creates a server for the directory root.
func New(root string, opts Options) *Server {
	return &Server{
		root: root,
		opts: opts,
		hub:  newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) debugf(format string, args ...interface{}) {
	if s.opts.Debug != nil {
		s.opts.Debug.Log("[livereload] "+format, args...)
	}
}

// Start listens and serves until ctx is cancelled. It returns once the
// listener is bound; a missing root is an error.
func (s *Server) Start(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("serve %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serve %s: not a directory", s.root)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[livereload] server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.debugf("serving %s on %s", s.root, ln.Addr())
	return nil
}

// URL returns the base URL once Start has succeeded.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	host := s.opts.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	return s.hub.len()
}

// Notify pushes a change message for paths. Absolute paths under the root
// are sent relative to it. Delivery is best effort.
func (s *Server) Notify(paths []string) error {
	msg := Message{Type: "change", Paths: make([]string, 0, len(paths))}
	for _, p := range paths {
		if rel, err := filepath.Rel(s.root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
		msg.Paths = append(msg.Paths, filepath.ToSlash(p))
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	n := s.hub.broadcast(data)
	s.debugf("notified %d client(s) of %d path(s)", n, len(paths))
	return nil
}

// Handler returns the HTTP handler serving files, the client script and
// the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SocketPath, s.handleSocket)
	mux.HandleFunc(ScriptPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Write([]byte(clientScript))
	})
	mux.HandleFunc("/", s.handleFile)

	if !s.opts.CORS {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.debugf("upgrade failed: %v", err)
		return
	}
	c := s.hub.add()
	s.debugf("client connected from %s", r.RemoteAddr)

	// Reader: discard input and notice the close.
	go func() {
		defer s.hub.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer conn.Close()
	for msg := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.debugf("write failed: %v", err)
			s.hub.remove(c)
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

// handleFile serves the build tree, injecting the client script into
// HTML documents.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.root, filepath.FromSlash(name))

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || !strings.EqualFold(filepath.Ext(full), ".html") {
		http.FileServer(http.Dir(s.root)).ServeHTTP(w, r)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, full, info.ModTime(), bytes.NewReader(InjectScript(data)))
}

// InjectScript inserts the client script tag before the closing body tag,
// or appends it when there is none.
func InjectScript(html []byte) []byte {
	tag := []byte(`<script src="` + ScriptPath + `"></script>`)
	i := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), html...), tag...)
	}
	out := make([]byte, 0, len(html)+len(tag))
	out = append(out, html[:i]...)
	out = append(out, tag...)
	return append(out, html[i:]...)
}
