package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var ErrClosed = errors.New("websocket closed")

type HandlerFunc func(data []byte) error

func Json[T any](j func(x T) error) HandlerFunc {
	return func(data []byte) error {
		var t T
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}

		return j(t)
	}
}

type ClientConfig struct {
	URL         string
	DialTimeout time.Duration
	Headers     http.Header
	OnText      func(data []byte) error
	OnBinary    func(data []byte) error
	// OnClose is called once when the connection is gone, either because the
	// peer closed it, a read failed, or Close was called.
	OnClose func(err error)
	Logger  *slog.Logger
}

type Client struct {
	conn     net.Conn
	out      chan wsutil.Message
	done     chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc
	logger   *slog.Logger
	closeErr error
	onClose  func(err error)
}

func (c *Client) setDone(err error) {
	c.doneOnce.Do(func() {
		c.closeErr = err
		close(c.done)
		c.cancel()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) WriteText(data []byte) error {
	return c.Write(ws.OpText, data)
}

func (c *Client) WriteBinary(data []byte) error {
	return c.Write(ws.OpBinary, data)
}

func (c *Client) Ping(data []byte) error {
	return c.Write(ws.OpPing, data)
}

func (c *Client) SendClose(code ws.StatusCode, reason string) error {
	return c.Write(ws.OpClose, ws.NewCloseFrameBody(code, reason))
}

// Close sends a close frame and waits for the peer to acknowledge it or ctx
// to expire. The connection is torn down in both cases.
func (c *Client) Close(ctx context.Context) error {
	if err := c.SendClose(ws.StatusNormalClosure, "closing"); err != nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.setDone(ctx.Err())
		return fmt.Errorf("close failed: %w", ctx.Err())
	}
}

func (c *Client) Write(opcode ws.OpCode, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.out <- wsutil.Message{OpCode: opcode, Payload: data}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Connect dials config.URL. ctx bounds the handshake only; the connection
// lives until Close is called or the peer goes away.
func Connect(ctx context.Context, config ClientConfig) (*Client, error) {

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("url", config.URL),
	)

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	// 1) Handshake timeout only:
	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	// 2) Dial + WebSocket handshake
	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	conn, buf, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, err
	}
	logger.Debug("Handshake complete with response:", slog.Any("handshake", hs))

	logger.Info("Connected to websocket")

	var (
		input  = make(chan wsutil.Message, 1000)
		output = make(chan wsutil.Message, 1000)
	)

	runCtx, runCancel := context.WithCancel(context.Background())

	client := &Client{
		conn:    conn,
		out:     output,
		done:    make(chan struct{}),
		cancel:  runCancel,
		logger:  logger,
		onClose: config.OnClose,
	}

	onTextFunc := config.OnText
	if onTextFunc == nil {
		onTextFunc = func(data []byte) error {
			return nil
		}
	}
	onBinaryFunc := config.OnBinary
	if onBinaryFunc == nil {
		onBinaryFunc = func(data []byte) error {
			return nil
		}
	}

	// read reports false once the connection is done.
	read := func(r io.Reader) bool {
		messages, err := wsutil.ReadServerMessage(r, nil)
		if err != nil {
			if errors.Is(err, io.EOF) || runCtx.Err() != nil {
				client.setDone(nil)
				return false
			}

			logger.Error("ws read failed", slog.Any("err", err))
			client.setDone(err)
			return false
		}
		for _, msg := range messages {
			select {
			case input <- msg:
			case <-runCtx.Done():
				return false
			}
		}
		return true
	}

	go func() {
		// buf holds frames the server sent along with the handshake
		// response; they come before anything read from conn.
		if buf != nil {
			for buf.Buffered() > 0 {
				if !read(buf) {
					ws.PutReader(buf)
					return
				}
			}
			ws.PutReader(buf)
		}
		for read(conn) {
		}
	}()

	// output channel -> websocket
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case msg := <-output:
				err := wsutil.WriteClientMessage(conn, msg.OpCode, msg.Payload)
				if err != nil {
					logger.Error("Message write error:", slog.Any("err", err))
					client.setDone(err)
					return
				}

			}
		}
	}()

	// input channel processing
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case msg := <-input:

				// handle control
				if ws.OpCode.IsControl(msg.OpCode) {
					logger.Debug("rcv: control", slog.Any("opcode", msg.OpCode), slog.Any("payload", msg.Payload))

					switch msg.OpCode {
					case ws.OpClose:
						logger.Debug("rcv: close. closing client", slog.String("reason", string(msg.Payload)))
						client.setDone(nil)
					case ws.OpPing:
						_ = client.Write(ws.OpPong, msg.Payload)
					}

					continue
				}

				switch msg.OpCode {
				case ws.OpText:
					logger.Debug("rcv: text", slog.Int("len", len(msg.Payload)))
					if err := onTextFunc(msg.Payload); err != nil {
						logger.Error("text message handler failed", slog.Any("err", err))
					}

				case ws.OpBinary:
					logger.Debug("rcv: binary", slog.Int("len", len(msg.Payload)))
					if err := onBinaryFunc(msg.Payload); err != nil {
						logger.Error("binary message handler failed", slog.Any("err", err))
					}
				}
			}
		}
	}()

	_ = client.Ping([]byte("ping"))

	return client, nil
}
