package nntp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer is a scripted NNTP server on the loopback interface.
type fakeServer struct {
	t        *testing.T
	ln       net.Listener
	greeting string
	user     string
	pass     string
	noBody   bool
	hang     bool // never answer article requests
	cutShort bool // close mid body
	articles map[string]string

	mu       sync.Mutex
	commands []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{
		t:        t,
		ln:       ln,
		greeting: "200 fake news server ready",
		articles: make(map[string]string),
	}
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) start() {
	go func() {
		for {
			c, err := s.ln.Accept()
			if err != nil {
				return
			}
			go s.serve(c)
		}
	}()
}

func (s *fakeServer) options() Options {
	host, portStr, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Options{Host: host, Port: port, Timeout: 2 * time.Second}
}

func (s *fakeServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeServer) serve(c net.Conn) {
	defer c.Close()
	tp := textproto.NewConn(c)

	if err := tp.PrintfLine("%s", s.greeting); err != nil {
		return
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "AUTHINFO":
			kind, val, _ := strings.Cut(arg, " ")
			switch {
			case kind == "USER" && val == s.user:
				tp.PrintfLine("381 password required")
			case kind == "PASS" && val == s.pass:
				tp.PrintfLine("281 authentication accepted")
			default:
				tp.PrintfLine("481 authentication rejected")
			}
		case "BODY", "ARTICLE":
			if s.hang {
				time.Sleep(5 * time.Second)
				return
			}
			if verb == "BODY" && s.noBody {
				tp.PrintfLine("500 command not recognized")
				continue
			}
			body, ok := s.articles[arg]
			if !ok {
				tp.PrintfLine("430 no such article")
				continue
			}
			code := 222
			if verb == "ARTICLE" {
				code = 220
				body = "Subject: test\r\n\r\n" + body
			}
			tp.PrintfLine("%d 0 %s", code, arg)
			if s.cutShort {
				c.Write([]byte(body[:len(body)/2]))
				return
			}
			w := tp.DotWriter()
			w.Write([]byte(body))
			w.Close()
		case "QUIT":
			tp.PrintfLine("205 bye")
			return
		default:
			tp.PrintfLine("500 what?")
		}
	}
}

func TestConnectAndFetchBody(t *testing.T) {
	srv := newFakeServer(t)
	srv.articles["<a1@test>"] = "line one\r\n.dot stuffed\r\nline three\r\n"
	srv.start()

	ctx := context.Background()
	c := NewConn(1, srv.options())
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate without user: %v", err)
	}

	body, err := c.FetchArticle(ctx, "a1@test")
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	want := "line one\n.dot stuffed\nline three\n"
	if string(body) != want {
		t.Fatalf("body = %q, want %q", body, want)
	}

	if ok, known := c.SupportsBody(); !ok || !known {
		t.Fatalf("SupportsBody = %v,%v", ok, known)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %s", c.State())
	}
}

func TestBodyFallbackToArticle(t *testing.T) {
	srv := newFakeServer(t)
	srv.noBody = true
	srv.articles["<a1@test>"] = "=ybegin line=128 size=1 name=x\r\nk\r\n=yend size=1\r\n"
	srv.articles["<a2@test>"] = "second\r\n"
	srv.start()

	ctx := context.Background()
	c := NewConn(1, srv.options())
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	body, err := c.FetchArticle(ctx, "<a1@test>")
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}
	if !bytes.Contains(body, []byte("=ybegin")) {
		t.Fatalf("body = %q", body)
	}
	if ok, known := c.SupportsBody(); ok || !known {
		t.Fatalf("SupportsBody = %v,%v", ok, known)
	}

	if _, err := c.FetchArticle(ctx, "<a2@test>"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	var bodies, articles int
	for _, cmd := range srv.seen() {
		switch {
		case strings.HasPrefix(cmd, "BODY"):
			bodies++
		case strings.HasPrefix(cmd, "ARTICLE"):
			articles++
		}
	}
	if bodies != 1 || articles != 2 {
		t.Fatalf("BODY sent %d times, ARTICLE %d times", bodies, articles)
	}
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		pass    string
		wantErr bool
	}{
		{"accepted", "joe", "secret", false},
		{"wrong password", "joe", "nope", true},
		{"wrong user", "bob", "secret", true},
		{"password missing", "joe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t)
			srv.user, srv.pass = "joe", "secret"
			srv.start()

			opts := srv.options()
			opts.Username, opts.Password = tt.user, tt.pass

			ctx := context.Background()
			c := NewConn(1, opts)
			if err := c.Connect(ctx); err != nil {
				t.Fatalf("Connect: %v", err)
			}
			defer c.Close()

			err := c.Authenticate(ctx)
			if tt.wantErr {
				if !errors.Is(err, ErrAuth) {
					t.Fatalf("err = %v, want ErrAuth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
		})
	}
}

func TestConnectRejectsBadGreeting(t *testing.T) {
	srv := newFakeServer(t)
	srv.greeting = "502 service unavailable"
	srv.start()

	err := NewConn(1, srv.options()).Connect(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 502 {
		t.Fatalf("status = %v", se)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	c := NewConn(1, Options{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second})
	if err := c.Connect(context.Background()); !errors.Is(err, ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := newFakeServer(t)
	srv.articles["<there@test>"] = "x\r\n"
	srv.start()

	ctx := context.Background()
	c := NewConn(1, srv.options())
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	_, err := c.FetchArticle(ctx, "missing@test")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrArticleNotFound) {
		t.Fatalf("err = %v, want ErrFetch and ErrArticleNotFound", err)
	}
	if c.Broken() {
		t.Fatal("a 430 must not break the session")
	}

	// the session is still usable after a failed reply
	if _, err := c.FetchArticle(ctx, "there@test"); err != nil {
		t.Fatalf("fetch after 430: %v", err)
	}
}

func TestFetchConnectionClosedMidBody(t *testing.T) {
	srv := newFakeServer(t)
	srv.cutShort = true
	srv.articles["<a1@test>"] = strings.Repeat("data line\r\n", 50)
	srv.start()

	ctx := context.Background()
	c := NewConn(1, srv.options())
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	_, err := c.FetchArticle(ctx, "a1@test")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("err = %v", err)
	}
	if !c.Broken() {
		t.Fatal("session should be marked broken")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := newFakeServer(t)
	srv.hang = true
	srv.start()

	opts := srv.options()
	opts.Timeout = 200 * time.Millisecond

	ctx := context.Background()
	c := NewConn(1, opts)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	start := time.Now()
	_, err := c.FetchArticle(ctx, "a1@test")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("fetch took %s, timeout not applied", time.Since(start))
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := newFakeServer(t)
	srv.hang = true
	srv.start()

	opts := srv.options()
	opts.Timeout = 0

	c := NewConn(1, opts)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if _, err := c.FetchArticle(ctx, "a1@test"); !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v", err)
	}
}

func TestReconnectAfterBrokenSession(t *testing.T) {
	srv := newFakeServer(t)
	srv.articles["<a1@test>"] = "x\r\n"
	srv.start()

	ctx := context.Background()
	c := NewConn(3, srv.options())
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	c.lost(errors.New("simulated"))
	if _, err := c.FetchArticle(ctx, "a1@test"); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("err = %v", err)
	}

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if _, err := c.FetchArticle(ctx, "a1@test"); err != nil {
		t.Fatalf("fetch after reconnect: %v", err)
	}
	if c.ID() != 3 {
		t.Fatalf("id = %d", c.ID())
	}
}

func TestFormatID(t *testing.T) {
	for in, want := range map[string]string{
		"abc@host":   "<abc@host>",
		"<abc@host>": "<abc@host>",
		" abc@host ": "<abc@host>",
	} {
		if got := formatID(in); got != want {
			t.Errorf("formatID(%q) = %q, want %q", in, got, want)
		}
	}
}
