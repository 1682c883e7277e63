package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible
// server speaking RESP. It dials per operation, which keeps the client
// trivial; marker traffic is one or two commands per experiment, so pooling
// would buy nothing.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the marker store.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
}

// NewValkeyProvider creates a Provider and pings the target to fail fast on
// bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	provider := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.ping(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.do(ctx, func(c *respConn) error {
		if err := c.send("GET", key); err != nil {
			return err
		}
		data, isNil, err := c.receiveBulk()
		if err != nil {
			return err
		}
		if isNil {
			return ErrCacheMiss
		}
		payload = data
		return nil
	})
	return payload, err
}

// Set stores bytes under key with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.do(ctx, func(c *respConn) error {
		if err := c.send(setArgs(key, value, ttl, false)...); err != nil {
			return err
		}
		status, err := c.receiveStatus()
		if err != nil {
			return err
		}
		if status != "OK" {
			return fmt.Errorf("unexpected SET response: %s", status)
		}
		return nil
	})
}

// SetNX stores the value only if the key does not exist, reporting whether
// the write happened.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var stored bool
	err := p.do(ctx, func(c *respConn) error {
		if err := c.send(setArgs(key, value, ttl, true)...); err != nil {
			return err
		}
		status, err := c.receiveStatus()
		if err != nil {
			return err
		}
		stored = status == "OK"
		return nil
	})
	return stored, err
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.do(ctx, func(c *respConn) error {
		if err := c.send("DEL", key); err != nil {
			return err
		}
		_, _, err := c.receiveBulk()
		return err
	})
}

// Close releases client resources. The provider holds no persistent
// connections, so this is a no-op.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.do(ctx, func(c *respConn) error {
		if err := c.send("PING"); err != nil {
			return err
		}
		status, err := c.receiveStatus()
		if err != nil {
			return err
		}
		if status != "PONG" {
			return fmt.Errorf("unexpected PING response: %s", status)
		}
		return nil
	})
}

func setArgs(key string, value []byte, ttl time.Duration, onlyIfAbsent bool) []string {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	if onlyIfAbsent {
		args = append(args, "NX")
	}
	return args
}

func (p *ValkeyProvider) do(ctx context.Context, op func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
		}

		err := p.attempt(ctx, op)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func (p *ValkeyProvider) attempt(ctx context.Context, op func(*respConn) error) error {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	c := &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}
	if err := p.authenticate(c); err != nil {
		return err
	}
	return op(c)
}

func (p *ValkeyProvider) authenticate(c *respConn) error {
	if p.cfg.Password == "" {
		return nil
	}
	args := []string{"AUTH", p.cfg.Password}
	if p.cfg.Username != "" {
		args = []string{"AUTH", p.cfg.Username, p.cfg.Password}
	}
	if err := c.send(args...); err != nil {
		return err
	}
	status, err := c.receiveStatus()
	if err != nil {
		return err
	}
	if !strings.EqualFold(status, "OK") {
		return fmt.Errorf("auth failed: %s", status)
	}
	return nil
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// respConn speaks the subset of RESP the provider needs: array-of-bulk
// commands out, simple strings, bulk strings, integers, and errors in.
type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) send(args ...string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&buf, "$%d\r\n%s\r\n", len(arg), arg)
	}
	_, err := io.WriteString(c.conn, buf.String())
	return err
}

// receiveStatus reads a reply expected to be a simple string. Nil bulk
// replies are reported as an empty status so SetNX can detect a skipped
// write.
func (c *respConn) receiveStatus() (string, error) {
	prefix, line, err := c.readLine()
	if err != nil {
		return "", err
	}
	switch prefix {
	case '+':
		return line, nil
	case '-':
		return "", errors.New(line)
	case '$':
		if line == "-1" {
			return "", nil
		}
		return "", fmt.Errorf("unexpected bulk reply of %s bytes", line)
	default:
		return "", fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

// receiveBulk reads a reply expected to be a bulk string or integer. The
// second return reports a nil bulk reply.
func (c *respConn) receiveBulk() ([]byte, bool, error) {
	prefix, line, err := c.readLine()
	if err != nil {
		return nil, false, err
	}
	switch prefix {
	case '$':
		size, err := strconv.Atoi(line)
		if err != nil {
			return nil, false, err
		}
		if size < 0 {
			return nil, true, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return nil, false, err
		}
		return buf[:size], false, nil
	case ':':
		return []byte(line), false, nil
	case '-':
		return nil, false, errors.New(line)
	default:
		return nil, false, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() (byte, string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return 0, "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return 0, "", errors.New("empty RESP line")
	}
	return line[0], line[1:], nil
}
