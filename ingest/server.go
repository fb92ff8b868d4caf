// Package ingest accepts device motion and pose streams over socket.io and
// pushes session results back to connected clients.
package ingest

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/log"
	"coach/motion"
	"coach/speech"
)

const room = "coaching"

type Stats struct {
	Clients  int64
	Motion   uint64
	Poses    uint64
	Rejected uint64
}

// Server is the socket.io endpoint. It also observes the session so clients
// see summaries, tips and state changes as they happen.
type Server struct {
	sio    *socketio.Server
	motion *motion.ChannelSource
	poses  *PoseSource
	clock  func() time.Time

	clients  atomic.Int64
	nMotion  atomic.Uint64
	nPoses   atomic.Uint64
	rejected atomic.Uint64
}

func allowOrigin(r *http.Request) bool { return true }

func New(m *motion.ChannelSource, p *PoseSource) *Server {
	s := &Server{motion: m, poses: p, clock: time.Now}
	s.sio = socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: allowOrigin},
			&polling.Transport{CheckOrigin: allowOrigin},
		},
	})

	s.sio.OnConnect("/", func(c socketio.Conn) error {
		c.SetContext("")
		c.Join(room)
		s.clients.Add(1)
		log.Info("ingest client connected: " + c.ID() + " " + c.RemoteAddr().String())
		return nil
	})
	s.sio.OnEvent("/", "motion", func(c socketio.Conn, msg string) {
		if err := s.handleMotion(msg); err != nil {
			s.reject(c, "motion", err)
		}
	})
	s.sio.OnEvent("/", "pose", func(c socketio.Conn, msg string) {
		if err := s.handlePose(msg); err != nil {
			s.reject(c, "pose", err)
		}
	})
	s.sio.OnError("/", func(c socketio.Conn, err error) {
		log.Warnf("ingest socket error: %v", err)
	})
	s.sio.OnDisconnect("/", func(c socketio.Conn, reason string) {
		s.clients.Add(-1)
		log.Info("ingest client disconnected: " + c.ID() + " (" + reason + ")")
	})
	return s
}

func (s *Server) handleMotion(msg string) error {
	v, err := ParseMotion(msg)
	if err != nil {
		return err
	}
	s.motion.Publish(v)
	s.nMotion.Add(1)
	return nil
}

func (s *Server) handlePose(msg string) error {
	p, err := ParsePose(msg, s.clock())
	if err != nil {
		return err
	}
	s.poses.Push(p)
	s.nPoses.Add(1)
	return nil
}

func (s *Server) reject(c socketio.Conn, event string, err error) {
	s.rejected.Add(1)
	err = xerrors.New(err)
	log.Debugf("ingest rejected %s from %s: %v", event, c.ID(), err)
	c.Emit("ingestError", map[string]string{"event": event, "message": err.Error()})
}

func (s *Server) Stats() Stats {
	return Stats{
		Clients:  s.clients.Load(),
		Motion:   s.nMotion.Load(),
		Poses:    s.nPoses.Load(),
		Rejected: s.rejected.Load(),
	}
}

// ListenAndServe serves socket.io on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go func() {
		if err := s.sio.Serve(); err != nil {
			log.Errorf("socket.io serve: %v", err)
		}
	}()
	defer s.sio.Close()

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", s.sio)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("ingest listening on " + addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Sample(float64, classify.State) {}

func (s *Server) StateChanged(from, to classify.State, intensity float64) {
	s.sio.BroadcastToRoom("/", room, "state", map[string]any{
		"from":      from.String(),
		"to":        to.String(),
		"intensity": intensity,
	})
}

func (s *Server) Summary(sessionID string, sum *aggregate.Summary) {
	s.sio.BroadcastToRoom("/", room, "summary", map[string]any{
		"session_id": sessionID,
		"summary":    sum,
	})
}

func (s *Server) Tip(t advisory.Tip, out speech.Outcome) {
	if out != speech.Spoken {
		return
	}
	s.sio.BroadcastToRoom("/", room, "tip", t)
}
