package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// ErrNotOpen is returned by requests made before Open or after Close.
var ErrNotOpen = errors.New("discord: connection not open")

// ErrConnectionLost is returned to requests in flight when the socket drops.
var ErrConnectionLost = errors.New("discord: connection lost")

const (
	eventBuffer       = 8
	closeWriteTimeout = time.Second
)

// DialFunc opens a raw connection to the Discord client.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Options configures a Client.
type Options struct {
	// SocketDir overrides the directory searched for discord-ipc-N sockets.
	SocketDir string

	// Dial replaces socket discovery entirely (for testing).
	Dial DialFunc

	// PID is reported with every activity. Defaults to the current process.
	PID int
}

// session is one live socket. Requests and the reader share it.
type session struct {
	id      uint64
	conn    net.Conn
	done    chan struct{}
	writeMu sync.Mutex
}

func (s *session) write(op Opcode, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteFrame(s.conn, op, body)
}

// writeBy is write with a deadline; a zero deadline means none.
// The deadline is lifted again afterwards so later pongs are not bound by it.
func (s *session) writeBy(op Opcode, v interface{}, deadline time.Time) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	defer s.conn.SetWriteDeadline(time.Time{})
	return WriteFrame(s.conn, op, body)
}

// Client implements domain.BroadcastChannel over Discord's local IPC socket.
type Client struct {
	dial   DialFunc
	pid    int
	logger *zap.Logger
	events chan domain.ChannelEvent

	mu      sync.Mutex
	sess    *session
	opened  uint64
	pending map[string]chan Message
}

// NewClient creates a Client. Nothing is dialled until Open.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	dial := opts.Dial
	if dial == nil {
		dial = socketDialer(opts.SocketDir)
	}
	pid := opts.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	return &Client{
		dial:    dial,
		pid:     pid,
		logger:  logger,
		events:  make(chan domain.ChannelEvent, eventBuffer),
		pending: make(map[string]chan Message),
	}
}

// Events delivers unsolicited notifications for the client's whole lifetime.
func (c *Client) Events() <-chan domain.ChannelEvent {
	return c.events
}

// Open dials Discord, performs the handshake and waits for READY.
// An already open connection is closed first.
func (c *Client) Open(ctx context.Context, creds domain.Credentials) error {
	if creds.ClientID == "" {
		return errors.New("discord: client id is required")
	}
	_ = c.Close()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	// Unblock handshake reads when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	s := &session{conn: conn, done: make(chan struct{})}
	if err := c.handshake(s, creds); err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	if !stop() {
		conn.Close()
		return ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})

	c.mu.Lock()
	c.opened++
	s.id = c.opened
	c.sess = s
	c.mu.Unlock()

	go c.readLoop(s)
	c.emit(domain.ChannelEvent{Kind: domain.ChannelReady, Session: s.id})
	return nil
}

// Session returns the id of the open connection, or 0.
func (c *Client) Session() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return c.sess.id
}

func (c *Client) handshake(s *session, creds domain.Credentials) error {
	if err := s.write(OpHandshake, Handshake{V: rpcVersion, ClientID: creds.ClientID}); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	for {
		op, body, err := ReadFrame(s.conn)
		if err != nil {
			return fmt.Errorf("read handshake reply: %w", err)
		}

		switch op {
		case OpPing:
			if err := writePong(s, body); err != nil {
				return err
			}
		case OpClose:
			return closeError(body)
		case OpFrame:
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				return fmt.Errorf("decode handshake reply: %w", err)
			}
			if msg.Evt == evtError {
				return decodeRPCError(msg.Data)
			}
			if msg.Cmd == cmdDispatch && msg.Evt == evtReady {
				var ready readyData
				if err := json.Unmarshal(msg.Data, &ready); err == nil {
					c.logger.Debug("discord ready",
						zap.Int("rpc_version", ready.V),
						zap.String("user", ready.User.Username))
				}
				return nil
			}
		}
	}
}

// Send replaces the presence with payload.
func (c *Client) Send(ctx context.Context, payload domain.PresencePayload) error {
	_, err := c.request(ctx, cmdSetActivity, ActivityArgs{PID: c.pid, Activity: NewActivity(payload)})
	return err
}

// Clear removes the presence.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.request(ctx, cmdSetActivity, ActivityArgs{PID: c.pid})
	return err
}

// request sends a command and waits for the reply carrying the same nonce.
func (c *Client) request(ctx context.Context, cmd string, args interface{}) (Message, error) {
	nonce := uuid.NewString()
	reply := make(chan Message, 1)

	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return Message{}, ErrNotOpen
	}
	c.pending[nonce] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, nonce)
		c.mu.Unlock()
	}()

	deadline, _ := ctx.Deadline()
	if err := s.writeBy(OpFrame, Command{Cmd: cmd, Args: args, Nonce: nonce}, deadline); err != nil {
		return Message{}, fmt.Errorf("write %s: %w", cmd, err)
	}

	select {
	case msg := <-reply:
		if msg.Evt == evtError {
			return msg, decodeRPCError(msg.Data)
		}
		return msg, nil
	case <-s.done:
		return Message{}, ErrConnectionLost
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// readLoop owns reads for s until the socket fails or Close is called.
func (c *Client) readLoop(s *session) {
	err := c.read(s)
	close(s.done)

	c.mu.Lock()
	owned := c.sess == s
	if owned {
		c.sess = nil
	}
	c.mu.Unlock()

	s.conn.Close()
	if owned {
		c.logger.Info("discord connection lost", zap.Error(err))
		c.emit(domain.ChannelEvent{Kind: domain.ChannelDisconnected, Err: err, Session: s.id})
	}
}

func (c *Client) read(s *session) error {
	for {
		op, body, err := ReadFrame(s.conn)
		if err != nil {
			return err
		}

		switch op {
		case OpFrame:
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				c.logger.Warn("discarding undecodable frame", zap.Error(err))
				continue
			}
			c.deliver(msg)
		case OpPing:
			if err := writePong(s, body); err != nil {
				return err
			}
		case OpClose:
			return closeError(body)
		case OpPong:
		default:
			c.logger.Debug("ignoring frame", zap.Stringer("opcode", op))
		}
	}
}

func (c *Client) deliver(msg Message) {
	if msg.Nonce == "" {
		c.logger.Debug("discord event", zap.String("cmd", msg.Cmd), zap.String("evt", msg.Evt))
		return
	}
	c.mu.Lock()
	reply, ok := c.pending[msg.Nonce]
	c.mu.Unlock()
	if !ok {
		return // Requester gave up
	}
	select {
	case reply <- msg:
	default:
	}
}

// Close tears the connection down without emitting ChannelDisconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	deadline := time.Now().Add(closeWriteTimeout)
	_ = s.conn.SetWriteDeadline(deadline) // Unblocks a stuck pong holding writeMu
	_ = s.writeBy(OpClose, struct{}{}, deadline)
	err := s.conn.Close()
	<-s.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) emit(ev domain.ChannelEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("dropping channel event, consumer is behind", zap.Stringer("kind", ev.Kind))
	}
}

func writePong(s *session, body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteFrame(s.conn, OpPong, body)
}

func closeError(body []byte) error {
	var rpcErr RPCError
	if err := json.Unmarshal(body, &rpcErr); err != nil || rpcErr.Code == 0 {
		return fmt.Errorf("discord closed the connection: %s", string(body))
	}
	return &rpcErr
}

func decodeRPCError(data []byte) error {
	var rpcErr RPCError
	if err := json.Unmarshal(data, &rpcErr); err != nil {
		return fmt.Errorf("discord error: %s", string(data))
	}
	return &rpcErr
}

// Ensure Client implements domain.BroadcastChannel.
var _ domain.BroadcastChannel = (*Client)(nil)
