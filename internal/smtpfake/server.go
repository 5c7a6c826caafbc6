// Package smtpfake is a minimal in-process SMTP server used only to drive
// smtpclient's tests: just enough of the state machine (EHLO/HELO,
// MAIL/RCPT/DATA/BDAT, RSET/NOOP/QUIT/VRFY, AUTH, STARTTLS) to exercise a
// real client against a real net.Conn instead of hand-rolled wire fixtures.
// It is not part of the module's public API — server-side SMTP behavior is
// out of scope for this module.
package smtpfake

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/smtp"
)

// DataFunc is invoked once a message body has been fully received.
type DataFunc func(ctx context.Context, from smtp.ReversePath, to []smtp.ForwardPath, body []byte) error

// RcptFunc is invoked for each RCPT TO; returning an error rejects the recipient.
type RcptFunc func(ctx context.Context, to smtp.ForwardPath) error

// AuthFunc authenticates a (mechanism, username, password) triple.
type AuthFunc func(ctx context.Context, mechanism, username, password string) error

// Server is a deliberately small SMTP server for tests.
type Server struct {
	Hostname      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxRecipients int
	MaxMessageSize int64
	TLSConfig     *tls.Config
	Logger        *slog.Logger
	RequireAuth   bool // Reject MAIL FROM until AUTH has succeeded (message submission mode).

	OnData  DataFunc
	OnRcpt  RcptFunc
	OnAuth  AuthFunc // Non-nil enables AUTH advertisement.

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
}

// NewServer returns a Server with test-friendly defaults.
func NewServer() *Server {
	return &Server{
		Hostname:      "fake.example.com",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		MaxRecipients: 100,
		Logger:        slog.Default(),
		quit:          make(chan struct{}),
	}
}

// Serve accepts and handles connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting connections and waits for in-flight sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.quit)
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(nc net.Conn) {
	conn := textline.NewConn(nc, int(smtp.ReplyServiceNotAvailable))
	defer conn.Close()

	sess := &session{server: s, conn: conn}

	if err := conn.WriteReply(int(smtp.ReplyServiceReady), s.Hostname+" ESMTP ready"); err != nil {
		return
	}
	sess.loop()
}
