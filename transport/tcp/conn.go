package tcp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

// MaxLineSize bounds a single read; longer lines are truncated and the
// remainder is returned by the next read
const MaxLineSize = 1024

// peerError marks a failure of the player's socket: a hang-up, a reset or
// an idle timeout. Errors of any other origin never carry it.
type peerError struct {
	err error
}

func (e *peerError) Error() string { return e.err.Error() }

func (e *peerError) Unwrap() error { return e.err }

// lineConn adapts a net.Conn to service.Conn, resetting the idle deadline
// before every read and write
type lineConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

func newLineConn(conn net.Conn, timeout time.Duration) *lineConn {
	return &lineConn{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, MaxLineSize),
		timeout: timeout,
	}
}

func (c *lineConn) Send(s string) error {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return &peerError{err}
	}
	if _, err := io.WriteString(c.conn, s); err != nil {
		return &peerError{err}
	}
	return nil
}

func (c *lineConn) RecvLine() ([]byte, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return nil, &peerError{err}
	}

	line, err := c.reader.ReadSlice('\n')
	switch {
	case err == nil, errors.Is(err, bufio.ErrBufferFull):
	case errors.Is(err, io.EOF) && len(line) > 0:
		// the peer closed after an unterminated line
	default:
		return nil, &peerError{err}
	}
	return bytes.Clone(bytes.TrimSpace(line)), nil
}

func (c *lineConn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}
