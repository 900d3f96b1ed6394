package service

// Conn is the line-oriented channel a single player is served over
type Conn interface {
	// Send writes text to the player as is
	Send(s string) error

	// RecvLine reads one line with surrounding whitespace removed
	RecvLine() ([]byte, error)
}

func sendLine(conn Conn, s string) error {
	return conn.Send(s + "\n")
}
