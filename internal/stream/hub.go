// Package stream broadcasts rig frames to websocket clients and accepts control input from them.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/Versifine/strider/internal/input"
	"github.com/Versifine/strider/internal/rig"
	"github.com/Versifine/strider/internal/sim"
	"github.com/Versifine/strider/internal/trace"
)

const clientBuffer = 16

// InputMessage is what a client sends to steer the rig.
type InputMessage struct {
	Type       string     `json:"type"`
	Forward    float64    `json:"forward"`
	Strafe     float64    `json:"strafe"`
	Turn       float64    `json:"turn"`
	Jump       bool       `json:"jump"`
	FaceCamera bool       `json:"face_camera"`
	Camera     [3]float64 `json:"camera"`
}

type Hub struct {
	upgrader    websocket.Upgrader
	allowRemote bool
	controls    *input.Latch

	mu      sync.Mutex
	clients map[uint64]chan []byte
	nextID  atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a hub. controls may be nil, in which case client input is ignored.
func NewHub(controls *input.Latch, allowRemote bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		allowRemote: allowRemote,
		controls:    controls,
		clients:     make(map[uint64]chan []byte),
	}
}

// Broadcast sends v as JSON to every client. Clients whose buffer is full miss the frame.
func (h *Hub) Broadcast(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Observer broadcasts every frame of the loop.
func (h *Hub) Observer(r *rig.Rig) sim.Observer {
	return func(fr sim.Frame) {
		if h.Clients() == 0 {
			return
		}
		if err := h.Broadcast(trace.FromPose(fr.Index, r.Pose(), fr.Report.Started, fr.Report.Landed)); err != nil {
			slog.Debug("stream broadcast failed", "error", err)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) register() (uint64, chan []byte) {
	id := h.nextID.Add(1)
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out := h.register()
		defer h.unregister(id)
		slog.Info("stream client connected", "client", id, "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleMessage(msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		slog.Info("stream client disconnected", "client", id)
	}
}

func (h *Hub) handleMessage(msg []byte) {
	if h.controls == nil {
		return
	}
	var in InputMessage
	if err := json.Unmarshal(msg, &in); err != nil || in.Type != "input" {
		return
	}
	h.controls.Set(input.Sample{
		Forward:    in.Forward,
		Strafe:     in.Strafe,
		Turn:       in.Turn,
		Jump:       in.Jump,
		FaceCamera: in.FaceCamera,
		Camera:     mgl64.Vec3{in.Camera[0], in.Camera[1], in.Camera[2]},
	})
}

// Serve listens on addr until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("stream listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
