// Package chat relays short text messages between app instances on the
// local network over UDP broadcast.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"appshell/internal/config"
	"appshell/internal/domain"
	"appshell/internal/logging"
)

// maxDatagram bounds one received chat datagram.
const maxDatagram = 64 * 1024

// Options configures the relay socket and message limits.
type Options struct {
	// ListenAddr is the local UDP address, e.g. ":41234".
	ListenAddr string
	// BroadcastAddr is where outgoing messages are sent.
	BroadcastAddr string
	DefaultName   string
	MaxTextLength int
}

// OptionsFromConfig maps the [chat] config section.
func OptionsFromConfig(c config.Chat) Options {
	port := strconv.Itoa(c.Port)
	return Options{
		ListenAddr:    ":" + port,
		BroadcastAddr: net.JoinHostPort(c.BroadcastAddr, port),
		DefaultName:   c.DefaultName,
		MaxTextLength: c.MaxTextLength,
	}
}

// Metrics receives relay counters. *metrics.Collector satisfies it.
type Metrics interface {
	RecordChatSent()
	RecordChatReceived()
	RecordChatDropped(reason string)
}

// Relay owns the chat socket, broadcasts outgoing messages, and fans
// incoming ones out to subscribers.
type Relay struct {
	opts    Options
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time

	mu      sync.RWMutex
	conn    net.PacketConn
	subs    map[int]func(domain.ChatMessage)
	nextSub int
	done    chan struct{}
}

// NewRelay creates an unstarted relay. metrics may be nil.
func NewRelay(opts Options, logger *slog.Logger, metrics Metrics) *Relay {
	if opts.DefaultName == "" {
		opts.DefaultName = "Unbekannt"
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = 2000
	}
	return &Relay{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "chat"),
		metrics: metrics,
		now:     time.Now,
		subs:    make(map[int]func(domain.ChatMessage)),
	}
}

// Start binds the socket and runs the receive loop until ctx is canceled.
func (r *Relay) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp4", r.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("chat: listen %s: %w", r.opts.ListenAddr, err)
	}

	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		_ = conn.Close()
		return errors.New("chat: relay already started")
	}
	r.conn = conn
	r.done = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("chat relay listening",
		logging.String("address", conn.LocalAddr().String()),
		logging.String("broadcast", r.opts.BroadcastAddr),
	)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go r.receiveLoop(conn)
	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (r *Relay) LocalAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Done is closed when the receive loop exits.
func (r *Relay) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// Send builds a message from payload and broadcasts it. The message is
// returned for local echo even when the broadcast fails; ok is false only
// when the payload has no text.
func (r *Relay) Send(payload domain.ChatPayload) (domain.ChatMessage, bool) {
	if payload.Text == "" {
		return domain.ChatMessage{}, false
	}

	msg := r.newMessage(payload)
	if err := r.broadcast(msg); err != nil {
		logging.WarnWithContext(r.logger, "chat broadcast failed", "chat_broadcast_failed",
			logging.String("message_id", msg.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "message shown locally only"),
		)
		r.recordDropped("send_failed")
		return msg, true
	}
	if r.metrics != nil {
		r.metrics.RecordChatSent()
	}
	return msg, true
}

func (r *Relay) newMessage(payload domain.ChatPayload) domain.ChatMessage {
	now := r.now()
	name := payload.Name
	if name == "" {
		name = r.opts.DefaultName
	}
	return domain.ChatMessage{
		ID:   strconv.FormatInt(now.UnixMilli(), 10) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6],
		Name: name,
		Text: truncateRunes(payload.Text, r.opts.MaxTextLength),
		TS:   now.UnixMilli(),
	}
}

func (r *Relay) broadcast(msg domain.ChatMessage) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return errors.New("relay not started")
	}

	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	addr, err := net.ResolveUDPAddr("udp4", r.opts.BroadcastAddr)
	if err != nil {
		return err
	}
	_, err = conn.WriteTo(buf, addr)
	return err
}

// Subscribe registers fn for every received message. The returned function
// removes the subscription.
func (r *Relay) Subscribe(fn func(domain.ChatMessage)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Relay) receiveLoop(conn net.PacketConn) {
	defer close(r.done)
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				r.logger.Info("chat relay stopped")
				return
			}
			r.logger.Error("chat read failed", logging.Error(err))
			continue
		}

		var msg domain.ChatMessage
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			r.logger.Debug("malformed chat datagram dropped",
				logging.String("from", from.String()),
				logging.Int("bytes", n),
				logging.Error(err),
			)
			r.recordDropped("malformed")
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordChatReceived()
		}
		r.dispatch(msg)
	}
}

func (r *Relay) dispatch(msg domain.ChatMessage) {
	r.mu.RLock()
	subs := make([]func(domain.ChatMessage), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.RUnlock()

	for _, fn := range subs {
		fn(msg)
	}
}

func (r *Relay) recordDropped(reason string) {
	if r.metrics != nil {
		r.metrics.RecordChatDropped(reason)
	}
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
