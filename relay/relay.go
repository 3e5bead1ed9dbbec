// Package relay accepts realtime websocket clients and forwards their frames
// to the upstream realtime endpoint, adding server-side credentials. Clients
// of a relay never hold an API key.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/codewandler/openairt-console/internal/metrics"
	"github.com/codewandler/openairt-console/internal/websocket"
)

const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"

	closeTimeout = 2 * time.Second
)

type Config struct {
	// UpstreamURL is the realtime endpoint, e.g. wss://api.openai.com/v1/realtime.
	UpstreamURL string
	APIKey      string
	// Model is used when the client does not ask for one.
	Model       string
	DialTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

type Server struct {
	config   Config
	logger   *slog.Logger
	upgrader gorilla.Upgrader
}

func New(config Config) (*Server, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("relay: missing upstream url")
	}
	if config.APIKey == "" {
		return nil, errors.New("relay: missing api key")
	}
	if _, err := url.Parse(config.UpstreamURL); err != nil {
		return nil, fmt.Errorf("relay: invalid upstream url: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: config,
		logger: logger,
		upgrader: gorilla.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) upstreamURL(r *http.Request) string {
	u, _ := url.Parse(s.config.UpstreamURL)
	model := r.URL.Query().Get("model")
	if model == "" {
		model = s.config.Model
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ServeHTTP upgrades the request, dials upstream and pipes frames both ways
// until either side goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := s.upstreamURL(r)
	logger := s.logger.With(slog.String("remote", r.RemoteAddr))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("relay upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	if m := s.config.Metrics; m != nil {
		m.RelayConnections.Inc()
		defer m.RelayConnections.Dec()
	}

	p := &pipe{conn: conn, metrics: s.config.Metrics}

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+s.config.APIKey)
	headers.Add("OpenAI-Beta", "realtime=v1")

	upstream, err := websocket.Connect(r.Context(), websocket.ClientConfig{
		URL:         target,
		DialTimeout: s.config.DialTimeout,
		Headers:     headers,
		Logger:      logger,
		OnText:      p.downstream(gorilla.TextMessage),
		OnBinary:    p.downstream(gorilla.BinaryMessage),
		OnClose: func(err error) {
			if err != nil {
				logger.Warn("relay upstream closed", slog.Any("err", err))
			}
			p.close(gorilla.CloseNormalClosure, "upstream closed")
		},
	})
	if err != nil {
		logger.Error("relay upstream dial failed", slog.Any("err", err))
		p.close(gorilla.CloseInternalServerErr, "upstream unavailable")
		return
	}

	logger.Info("relay session opened", slog.String("upstream", target))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = upstream.Close(ctx)
		logger.Info("relay session closed")
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				logger.Debug("relay client read ended", slog.Any("err", err))
			}
			return
		}
		switch mt {
		case gorilla.TextMessage:
			err = upstream.WriteText(data)
		case gorilla.BinaryMessage:
			err = upstream.WriteBinary(data)
		default:
			continue
		}
		if err != nil {
			logger.Debug("relay upstream write failed", slog.Any("err", err))
			return
		}
		if p.metrics != nil {
			p.metrics.RelayMessages.WithLabelValues(DirectionUpstream).Inc()
		}
	}
}

// pipe serializes writes to the client connection.
type pipe struct {
	mu      sync.Mutex
	conn    *gorilla.Conn
	closed  bool
	metrics *metrics.Metrics
}

func (p *pipe) downstream(messageType int) func(data []byte) error {
	return func(data []byte) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return nil
		}
		if err := p.conn.WriteMessage(messageType, data); err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.RelayMessages.WithLabelValues(DirectionDownstream).Inc()
		}
		return nil
	}
}

func (p *pipe) close(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	deadline := time.Now().Add(time.Second)
	_ = p.conn.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(code, reason), deadline)
	_ = p.conn.Close()
}
