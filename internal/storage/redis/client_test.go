package redis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer speaks just enough RESP for PING, GET and SET [EX n].
type fakeServer struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
	ttls map[string]string
	cmds [][]string
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{
		ln:   ln,
		data: make(map[string]string),
		ttls: make(map[string]string),
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		args, err := readCommand(rd)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.cmds = append(s.cmds, args)
		switch strings.ToUpper(args[0]) {
		case "PING":
			fmt.Fprint(w, "+PONG\r\n")
		case "GET":
			if v, ok := s.data[args[1]]; ok {
				fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
			} else {
				fmt.Fprint(w, "$-1\r\n")
			}
		case "SET":
			s.data[args[1]] = args[2]
			if len(args) == 5 && strings.EqualFold(args[3], "EX") {
				s.ttls[args[1]] = args[4]
			}
			fmt.Fprint(w, "+OK\r\n")
		default:
			fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", args[0])
		}
		s.mu.Unlock()

		if err := w.Flush(); err != nil {
			return
		}
	}
}

func readCommand(rd *bufio.Reader) ([]string, error) {
	header, err := readLine(rd)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(header, "*") {
		return nil, fmt.Errorf("expected array, got %q", header)
	}
	n, err := strconv.Atoi(header[1:])
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lenLine, err := readLine(rd)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimPrefix(lenLine, "$"))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func newTestClient(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	c, err := New(Config{Addr: s.ln.Addr().String(), PoolSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_GetMissingKey(t *testing.T) {
	c := newTestClient(t, startFakeServer(t))

	v, found, err := c.Get(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if found || v != nil {
		t.Errorf("Get(missing) = %q, %v; want nil, false", v, found)
	}
}

func TestClient_SetEXThenGet(t *testing.T) {
	s := startFakeServer(t)
	c := newTestClient(t, s)
	ctx := context.Background()

	if err := c.SetEX(ctx, "k", []byte(`{"to":"Ana"}`), 48*time.Hour); err != nil {
		t.Fatal(err)
	}

	v, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(v) != `{"to":"Ana"}` {
		t.Errorf("Get = %q, %v", v, found)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttls["k"] != "172800" {
		t.Errorf("EX = %q, want 172800", s.ttls["k"])
	}
}

func TestClient_SetEXWithoutTTL(t *testing.T) {
	s := startFakeServer(t)
	c := newTestClient(t, s)

	if err := c.SetEX(context.Background(), "k", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.cmds[len(s.cmds)-1]
	if len(last) != 3 {
		t.Errorf("expected plain SET without EX, got %v", last)
	}
}

func TestClient_SubSecondTTLRoundsUp(t *testing.T) {
	s := startFakeServer(t)
	c := newTestClient(t, s)

	if err := c.SetEX(context.Background(), "k", []byte("1"), 300*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttls["k"] != "1" {
		t.Errorf("EX = %q, want 1", s.ttls["k"])
	}
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	c := newTestClient(t, startFakeServer(t))

	_, err := c.do(context.Background(), "FLUSHALL")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected server error, got: %v", err)
	}
}

func TestNamespace_PrefixesKeys(t *testing.T) {
	s := startFakeServer(t)
	c := newTestClient(t, s)
	ctx := context.Background()

	quota := NewNamespace(c, "chat_quota")
	links := NewNamespace(c, "negotiation_links")

	if err := quota.Put(ctx, "2025-07-16", []byte("120"), time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, found, _ := links.Get(ctx, "2025-07-16"); found {
		t.Error("namespaces should not share keys")
	}
	v, found, err := quota.Get(ctx, "2025-07-16")
	if err != nil || !found || string(v) != "120" {
		t.Errorf("quota.Get = %q, %v, %v", v, found, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data["chat_quota:2025-07-16"]; !ok {
		t.Errorf("expected prefixed key, have %v", s.data)
	}
}

func TestReadResp_NullBulk(t *testing.T) {
	r, err := readResp(bufio.NewReader(strings.NewReader("$-1\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if r.typ != respBulkString || !r.null {
		t.Errorf("got %+v, want null bulk string", r)
	}
}

func TestReadResp_EmptyBulkIsNotNull(t *testing.T) {
	r, err := readResp(bufio.NewReader(strings.NewReader("$0\r\n\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if r.null || r.str != "" {
		t.Errorf("got %+v, want empty non-null bulk string", r)
	}
}
