package redis

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRedis отвечает на команды RESP2 заранее заданными ответами
type stubRedis struct {
	ln       net.Listener
	replies  map[string]string
	mu       sync.Mutex
	commands []string
}

func newStubRedis(t *testing.T, replies map[string]string) *stubRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubRedis{ln: ln, replies: replies}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *stubRedis) client(t *testing.T) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{Addr: s.ln.Addr().String(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func (s *stubRedis) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		name := strings.ToUpper(args[0])
		s.mu.Lock()
		s.commands = append(s.commands, name)
		s.mu.Unlock()

		reply, ok := s.replies[name]
		if !ok {
			reply = "-ERR unknown command\r\n"
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func (s *stubRedis) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(header[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestContestLocker_TryLock(t *testing.T) {
	stub := newStubRedis(t, map[string]string{"SET": "+OK\r\n", "EVALSHA": ":1\r\n"})
	locker, err := NewContestLocker(stub.client(t), "", time.Second)
	require.NoError(t, err)

	release, acquired, err := locker.TryLock(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, acquired)
	release()

	assert.Equal(t, []string{"SET", "EVALSHA"}, stub.seen())
}

func TestContestLocker_HeldByAnotherInstance(t *testing.T) {
	stub := newStubRedis(t, map[string]string{"SET": "$-1\r\n"})
	locker, err := NewContestLocker(stub.client(t), "", time.Second)
	require.NoError(t, err)

	release, acquired, err := locker.TryLock(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Nil(t, release)
}

func TestContestLocker_ReleaseErrorIsLogged(t *testing.T) {
	stub := newStubRedis(t, map[string]string{"SET": "+OK\r\n", "EVALSHA": "-ERR release failed\r\n"})
	locker, err := NewContestLocker(stub.client(t), "", time.Second)
	require.NoError(t, err)
	logs := captureLog(t)

	release, acquired, err := locker.TryLock(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, acquired)
	release()

	assert.Contains(t, logs.String(), "[ContestLocker]")
	assert.Contains(t, logs.String(), "release failed")
}

func TestNewContestLocker_RequiresClient(t *testing.T) {
	_, err := NewContestLocker(nil, "", time.Second)
	assert.Error(t, err)
}
