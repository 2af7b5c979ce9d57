package nntp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// State is the protocol step a session is in. Each step owns one request.
type State int

const (
	StateGreeting State = iota
	StateAuthUser
	StateAuthPass
	StateArticle
	StateBody
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateAuthUser:
		return "auth-user"
	case StateAuthPass:
		return "auth-pass"
	case StateArticle:
		return "article"
	case StateBody:
		return "body"
	default:
		return "idle"
	}
}

type request struct {
	format    string // empty for the greeting, which is read only
	multiline bool
}

var requests = map[State]request{
	StateGreeting: {},
	StateAuthUser: {format: "AUTHINFO USER %s"},
	StateAuthPass: {format: "AUTHINFO PASS %s"},
	StateArticle:  {format: "ARTICLE %s", multiline: true},
	StateBody:     {format: "BODY %s", multiline: true},
}

const quitTimeout = 2 * time.Second

type capability int

const (
	capUnknown capability = iota
	capSupported
	capUnsupported
)

type Options struct {
	Host          string
	Port          int
	Username      string
	Password      string
	TLS           bool
	TLSSkipVerify bool

	// Timeout bounds dialing and every request/reply exchange. Zero disables it.
	Timeout time.Duration
}

func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Conn is one NNTP session. It is owned by a single worker and is not safe
// for concurrent use.
type Conn struct {
	id   int
	opts Options

	raw net.Conn
	tp  *textproto.Conn

	state  State
	body   capability
	broken bool
	done   bool
}

func NewConn(id int, opts Options) *Conn {
	return &Conn{id: id, opts: opts, state: StateIdle}
}

func (c *Conn) ID() int         { return c.id }
func (c *Conn) State() State    { return c.state }
func (c *Conn) Broken() bool    { return c.broken }
func (c *Conn) Done() bool      { return c.done }
func (c *Conn) Connected() bool { return c.tp != nil && !c.broken }

// SupportsBody reports whether BODY works on this session, and whether that
// has been discovered yet.
func (c *Conn) SupportsBody() (supported, known bool) {
	return c.body == capSupported, c.body != capUnknown
}

// Connect dials the server and reads the greeting. An existing transport is
// dropped first so the same Conn can be used to reconnect.
func (c *Conn) Connect(ctx context.Context) error {
	c.closeTransport()

	addr := c.opts.Addr()
	dialer := &net.Dialer{Timeout: c.opts.Timeout}

	var raw net.Conn
	var err error

	if c.opts.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         c.opts.Host,
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: c.opts.TLSSkipVerify,
			},
		}
		raw, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		raw, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnect, addr, err)
	}

	c.raw = raw
	c.tp = textproto.NewConn(raw)
	c.broken = false
	c.done = false
	c.body = capUnknown

	// Usenet servers greet with 200 or 201, anything in [100,400) is accepted
	if _, _, _, err := c.exchange(ctx, StateGreeting, ""); err != nil {
		c.closeTransport()
		return fmt.Errorf("%w: greeting from %s: %w", ErrConnect, addr, err)
	}

	c.state = StateIdle
	return nil
}

// Authenticate runs AUTHINFO USER/PASS. Without a username it is a no-op.
func (c *Conn) Authenticate(ctx context.Context) error {
	if c.opts.Username == "" {
		return nil
	}

	code, _, _, err := c.exchange(ctx, StateAuthUser, c.opts.Username)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}

	// 381: Password required
	if code == 381 {
		if c.opts.Password == "" {
			return fmt.Errorf("%w: server requires a password", ErrAuth)
		}

		code, msg, _, err := c.exchange(ctx, StateAuthPass, c.opts.Password)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}
		if code/100 != 2 {
			return fmt.Errorf("%w: %w", ErrAuth, &StatusError{Code: code, Msg: msg})
		}
	}

	c.state = StateIdle
	return nil
}

// FetchArticle retrieves the raw content of one article. The first fetch on
// a session probes BODY; a 500/501 switches the session to ARTICLE for good.
func (c *Conn) FetchArticle(ctx context.Context, articleID string) ([]byte, error) {
	id := formatID(articleID)

	if c.tp == nil || c.broken {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, id, ErrConnectionLost)
	}

	state := StateBody
	if c.body == capUnsupported {
		state = StateArticle
	}

	_, _, body, err := c.exchange(ctx, state, id)

	if state == StateBody && c.body == capUnknown {
		switch code := statusCode(err); {
		case code == 500 || code == 501:
			c.body = capUnsupported
			_, _, body, err = c.exchange(ctx, StateArticle, id)
		case err == nil || code != 0:
			c.body = capSupported
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, id, err)
	}

	c.state = StateIdle
	return body, nil
}

// Close sends QUIT when the session is healthy and closes the transport.
func (c *Conn) Close() error {
	c.done = true
	if c.tp == nil {
		return nil
	}

	if !c.broken {
		// Send the NNTP QUIT command so the server can release
		// the connection slot immediately.
		c.raw.SetDeadline(time.Now().Add(quitTimeout))
		_ = c.tp.PrintfLine("QUIT")
	}

	err := c.tp.Close()
	c.tp = nil
	c.raw = nil
	return err
}

func (c *Conn) closeTransport() {
	if c.tp != nil {
		c.tp.Close()
	}
	c.tp = nil
	c.raw = nil
}

// exchange sends the request for state, if it has one, and reads the reply.
// Reading stops right after the status line when it does not indicate
// success, there is nothing to drain in that case.
func (c *Conn) exchange(ctx context.Context, state State, arg string) (int, string, []byte, error) {
	if c.tp == nil {
		return 0, "", nil, ErrConnectionLost
	}

	req := requests[state]
	c.state = state

	disarm := c.arm(ctx)
	defer disarm()

	if req.format != "" {
		if err := c.tp.PrintfLine(req.format, arg); err != nil {
			return 0, "", nil, c.lost(err)
		}
	}

	code, msg, err := c.readStatus()
	if err != nil {
		return 0, "", nil, c.lost(err)
	}

	if !success(code) {
		return code, msg, nil, &StatusError{Code: code, Msg: msg}
	}

	if !req.multiline {
		return code, msg, nil, nil
	}

	// DotReader semantics: undoes dot-stuffing and stops at the lone "."
	body, err := c.tp.ReadDotBytes()
	if err != nil {
		return code, msg, nil, c.lost(err)
	}

	return code, msg, body, nil
}

func (c *Conn) readStatus() (int, string, error) {
	line, err := c.tp.ReadLine()
	if err != nil {
		return 0, "", err
	}

	if len(line) < 3 {
		return 0, "", fmt.Errorf("malformed status line %q", line)
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", fmt.Errorf("malformed status line %q", line)
	}

	return code, strings.TrimSpace(line[3:]), nil
}

// arm applies the I/O timeout and lets ctx cancellation break a blocked read.
func (c *Conn) arm(ctx context.Context) func() {
	var deadline time.Time
	if c.opts.Timeout > 0 {
		deadline = time.Now().Add(c.opts.Timeout)
	}
	c.raw.SetDeadline(deadline)

	raw := c.raw
	stop := context.AfterFunc(ctx, func() {
		raw.SetDeadline(time.Now())
	})
	return func() { stop() }
}

// lost marks the session unusable. The reply framing can no longer be trusted.
func (c *Conn) lost(err error) error {
	c.broken = true
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

func success(code int) bool {
	return code >= 100 && code < 400
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func formatID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "<") {
		id = "<" + id + ">"
	}
	return id
}
