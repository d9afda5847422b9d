package viewer

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/globe-simulator/internal/logging"
)

const (
	// streamBuffer is how many ticks a subscriber may lag before it is
	// dropped. Line frames carry whole prefixes, so a reconnect recovers.
	streamBuffer    = 16
	streamWriteWait = 5 * time.Second
)

// streamHub fans encoded frames out to websocket subscribers. Snapshots and
// broadcasts are taken under the hub lock. Broadcasts carry every change
// since the previous broadcast, so a subscriber that joined in between may
// receive a change twice but never misses one.
type streamHub struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
	// cursor is the frame generation of the last broadcast.
	cursor uint64
}

func newStreamHub() *streamHub {
	return &streamHub{subs: make(map[chan []byte]struct{})}
}

// join takes a snapshot and registers a subscriber atomically. snapshot
// returns the message and the generation it reflects.
func (h *streamHub) join(snapshot func() ([]byte, uint64, error)) (chan []byte, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, http.ErrServerClosed
	}
	first, gen, err := snapshot()
	if err != nil {
		return nil, nil, err
	}
	if len(h.subs) == 0 {
		h.cursor = gen
	}
	ch := make(chan []byte, streamBuffer)
	h.subs[ch] = struct{}{}
	return ch, first, nil
}

func (h *streamHub) leave(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// publish encodes the changes after the hub cursor and delivers them to
// every subscriber. next returns the message and the generation it reflects.
// Nothing is encoded without subscribers. Subscribers with a full buffer are
// dropped.
func (h *streamHub) publish(next func(since uint64) ([]byte, uint64, error)) (sent, dropped int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return 0, 0, nil
	}
	msg, gen, err := next(h.cursor)
	if err != nil {
		return 0, 0, err
	}
	h.cursor = gen
	for ch := range h.subs {
		select {
		case ch <- msg:
			sent++
		default:
			delete(h.subs, ch)
			close(ch)
			dropped++
		}
	}
	return sent, dropped, nil
}

func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *streamHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish pushes the state written by the latest tick to stream subscribers
// as an incremental msgpack frame. Call it after every tick.
func (s *Server) Publish(ctx context.Context) {
	sent, dropped, err := s.hub.publish(func(since uint64) ([]byte, uint64, error) {
		frame := s.sim.FrameSince(since)
		msg, err := msgpack.Marshal(&frame)
		return msg, frame.Generation, err
	})
	if err != nil {
		s.log.Error(ctx, "stream frame encode failed", logging.Err(err))
		return
	}
	if dropped > 0 {
		s.log.Warn(ctx, "slow stream subscribers dropped",
			logging.Int("dropped", dropped),
			logging.Int("remaining", sent),
		)
	}
}

// CloseStreams disconnects every stream subscriber and refuses new ones.
// http.Server.Shutdown does not wait for hijacked connections.
func (s *Server) CloseStreams() { s.hub.close() }

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.CORSOrigins) == 0 || slices.Contains(s.opts.CORSOrigins, "*") {
		return true
	}
	return slices.Contains(s.opts.CORSOrigins, origin)
}

// handleStream upgrades to a websocket, sends one full frame and then an
// incremental frame per tick until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger(ctx)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "stream upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	ch, first, err := s.hub.join(func() ([]byte, uint64, error) {
		frame := s.sim.Frame(true)
		msg, err := msgpack.Marshal(&frame)
		return msg, frame.Generation, err
	})
	if err != nil {
		log.Warn(ctx, "stream join failed", logging.Err(err))
		return
	}
	defer s.hub.leave(ch)
	log.Info(ctx, "stream subscriber joined", logging.Int("subscribers", s.hub.len()))

	// Drain client messages so close frames and disconnects are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(msg []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteMessage(websocket.BinaryMessage, msg)
	}
	if err := send(first); err != nil {
		log.Debug(ctx, "stream write failed", logging.Err(err))
		return
	}

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := send(msg); err != nil {
				log.Debug(ctx, "stream write failed", logging.Err(err))
				return
			}
		case <-gone:
			log.Info(ctx, "stream subscriber left")
			return
		}
	}
}
