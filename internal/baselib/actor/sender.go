package actor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds how long Send waits to establish the outbound
// connection.
const DefaultDialTimeout = 5 * time.Second

// Send opens a one-shot TCP connection to target, writes frame in full, and
// closes. It never retries; callers decide retry policy. A non-empty
// sec.TLSCertPath wraps the connection in TLS, verified against the system's
// trusted roots with target.Host as the server name; the certificate file
// it names is not loaded.
func Send(ctx context.Context, frame []byte, target Address, sec SecurityConfig) error {
	addr := fmt.Sprintf("%s:%d", target.Host, target.Port)

	dialer := net.Dialer{Timeout: DefaultDialTimeout}

	var conn net.Conn
	var err error
	if sec.TLSCertPath != "" {
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, &tls.Config{
			ServerName: target.Host,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		log.DebugS(ctx, "outbound dial failed", "target", addr, "err", err)
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	written := 0
	for written < len(frame) {
		n, err := conn.Write(frame[written:])
		written += n
		if err != nil {
			log.DebugS(ctx, "outbound write failed", "target", addr, "err", err)
			return fmt.Errorf("write to %s: %w", addr, err)
		}
	}

	return nil
}
