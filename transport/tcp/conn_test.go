package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/gamegate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T, timeout time.Duration) (*lineConn, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		peer.Close()
	})
	return newLineConn(server, timeout), peer
}

func TestRecvLineTrims(t *testing.T) {
	lc, peer := pipe(t, time.Second)
	go io.WriteString(peer, "  42 \r\nnext\n")

	line, err := lc.RecvLine()
	require.NoError(t, err)
	assert.Equal(t, "42", string(line))

	line, err = lc.RecvLine()
	require.NoError(t, err)
	assert.Equal(t, "next", string(line))
}

func TestRecvLineTruncatesOversizedInput(t *testing.T) {
	lc, peer := pipe(t, time.Second)
	long := strings.Repeat("a", MaxLineSize+100)
	go io.WriteString(peer, long+"\n")

	line, err := lc.RecvLine()
	require.NoError(t, err)
	assert.Len(t, line, MaxLineSize)

	line, err = lc.RecvLine()
	require.NoError(t, err)
	assert.Len(t, line, 100)
}

// loopback returns both ends of a real TCP connection
func loopback(t *testing.T, timeout time.Duration) (*lineConn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	peer, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)
	t.Cleanup(func() {
		server.Close()
		peer.Close()
	})
	return newLineConn(server, timeout), peer
}

func TestRecvLineUnterminatedBeforeClose(t *testing.T) {
	lc, peer := loopback(t, time.Second)
	_, err := io.WriteString(peer, "7f")
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	line, err := lc.RecvLine()
	require.NoError(t, err)
	assert.Equal(t, "7f", string(line))

	_, err = lc.RecvLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, isDisconnect(err))
}

func TestPipeClosedIsDisconnect(t *testing.T) {
	lc, peer := pipe(t, time.Second)
	require.NoError(t, peer.Close())

	_, err := lc.RecvLine()
	require.Error(t, err)
	assert.True(t, isDisconnect(err))

	err = lc.Send("Error!\n")
	require.Error(t, err)
	assert.True(t, isDisconnect(err))
}

func TestStepErrorsAreNotDisconnects(t *testing.T) {
	rpcTimeout := &url.Error{Op: "Post", URL: "http://127.0.0.1:8545", Err: context.DeadlineExceeded}
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"ledger timeout", fmt.Errorf("deploy-contract: %w", &core.LedgerError{Op: "estimate", Message: rpcTimeout.Error(), Err: rpcTimeout}), "ledger"},
		{"step deadline", fmt.Errorf("request-flag: %w", context.DeadlineExceeded), "internal"},
		{"authentication", fmt.Errorf("deploy-contract: %w", core.ErrAuthentication), "authentication"},
		{"protocol", core.NewProtocolError("malformed identity payload"), "protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, isDisconnect(tt.err))
			assert.Equal(t, tt.kind, errorKind(tt.err))
		})
	}
}

func TestRecvLineTimeout(t *testing.T) {
	lc, _ := pipe(t, 50*time.Millisecond)

	_, err := lc.RecvLine()
	require.Error(t, err)
	assert.True(t, isDisconnect(err))
}

func TestSend(t *testing.T) {
	lc, peer := pipe(t, time.Second)
	done := make(chan string)
	go func() {
		buf := make([]byte, 5)
		n, _ := io.ReadFull(peer, buf)
		done <- string(buf[:n])
	}()

	require.NoError(t, lc.Send("hello"))
	assert.Equal(t, "hello", <-done)
}
