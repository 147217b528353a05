// Package websocket adapts a gorilla/websocket connection to the
// transport contract the reliable sender consumes: a one-way frame send
// plus an acknowledgement feed.
//
// The adapter is optional — any host with its own transport can supply a
// reliable.Transport directly — but it covers the common case of peers
// linked over a websocket.
package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/slipwire/slipwire/errs"
	"github.com/slipwire/slipwire/internal/options"
	"github.com/slipwire/slipwire/internal/pool"
)

// DefaultWriteTimeout bounds each write so a stalled peer cannot wedge
// the sender.
const DefaultWriteTimeout = 5 * time.Second

// Frame kinds multiplexed over the connection.
const (
	kindData = 1
	kindAck  = 2
)

// linkFrame is the msgpack envelope distinguishing data frames from
// acknowledgements on the same connection.
type linkFrame struct {
	Kind uint8  `msgpack:"k"`
	Data []byte `msgpack:"d,omitempty"`
	ID   string `msgpack:"id,omitempty"`
}

// Conn is the subset of *websocket.Conn the link needs. Tests supply a
// fake; production code passes the upgraded connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Link multiplexes slipwire data frames and acknowledgements over one
// websocket connection. Writes are serialized internally; gorilla
// connections allow only one concurrent writer.
type Link struct {
	conn         Conn
	writeTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time

	writeMu sync.Mutex
}

// Option configures a Link.
type Option = options.Option[*Link]

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return options.New(func(l *Link) error {
		if d <= 0 {
			return fmt.Errorf("%w: write timeout %v must be positive", errs.ErrInvalidConfig, d)
		}
		l.writeTimeout = d

		return nil
	})
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(l *Link) {
		l.logger = logger
	})
}

// NewLink wraps an established connection.
func NewLink(conn Conn, opts ...Option) (*Link, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: link requires a connection", errs.ErrInvalidConfig)
	}

	l := &Link{
		conn:         conn,
		writeTimeout: DefaultWriteTimeout,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	if err := options.Apply(l, opts...); err != nil {
		return nil, err
	}

	return l, nil
}

// Send transmits one data frame. Satisfies reliable.Transport.
func (l *Link) Send(frame []byte) error {
	return l.write(linkFrame{Kind: kindData, Data: frame})
}

// SendAck acknowledges a received packet id back to the peer.
func (l *Link) SendAck(id string) error {
	return l.write(linkFrame{Kind: kindAck, ID: id})
}

func (l *Link) write(f linkFrame) error {
	buf := pool.GetFrameBuffer()
	defer pool.PutFrameBuffer(buf)

	if err := msgpack.NewEncoder(buf).Encode(f); err != nil {
		return fmt.Errorf("encode link frame: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := l.conn.SetWriteDeadline(l.now().Add(l.writeTimeout)); err != nil {
		return err
	}

	return l.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

// ReadLoop reads frames until the connection fails or closes, dispatching
// data frames to onFrame and acknowledgements to onAck. Malformed frames
// are logged and skipped; a frame that fails to parse is the peer's bug,
// not a reason to drop the link.
//
// Returns the read error that ended the loop; websocket close errors are
// returned as-is for the caller to inspect.
func (l *Link) ReadLoop(onFrame func([]byte), onAck func(id string)) error {
	for {
		_, payload, err := l.conn.ReadMessage()
		if err != nil {
			return err
		}

		var f linkFrame
		if err := msgpack.Unmarshal(payload, &f); err != nil {
			l.logger.Warn("discarding malformed link frame", zap.Error(err))
			continue
		}

		switch f.Kind {
		case kindData:
			if onFrame != nil {
				onFrame(f.Data)
			}
		case kindAck:
			if onAck != nil {
				onAck(f.ID)
			}
		default:
			l.logger.Warn("discarding link frame of unknown kind", zap.Uint8("kind", f.Kind))
		}
	}
}

// Close sends a normal close message and closes the connection.
func (l *Link) Close() error {
	l.writeMu.Lock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = l.conn.SetWriteDeadline(l.now().Add(l.writeTimeout))
	_ = l.conn.WriteMessage(websocket.CloseMessage, message)
	l.writeMu.Unlock()

	return l.conn.Close()
}
