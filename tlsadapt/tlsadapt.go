// Package tlsadapt provides the collaborator interface used by smtpclient
// and nntpclient to perform the in-band TLS upgrade required by STARTTLS
// (RFC 3207 for SMTP, RFC 4642 for NNTP). Factoring the handshake behind
// an interface lets tests substitute a fake upgrader instead of driving a
// real crypto/tls handshake over a net.Pipe.
package tlsadapt

import (
	"context"
	"crypto/tls"
	"net"
)

// Upgrader performs a client-side TLS handshake over an already-connected
// plaintext net.Conn, returning the wrapped connection.
type Upgrader interface {
	Upgrade(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
}

// StdlibUpgrader upgrades a connection using crypto/tls.Client.
type StdlibUpgrader struct {
	// Config is cloned and, if ServerName is empty, filled in from the
	// Upgrade call's serverName argument before each handshake.
	Config *tls.Config
}

// Upgrade implements Upgrader using crypto/tls.
func (u StdlibUpgrader) Upgrade(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	cfg := u.Config
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	tlsConn := tls.Client(conn, cfg)
	if dl, ok := ctx.Deadline(); ok {
		tlsConn.SetDeadline(dl)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tlsConn, nil
}
