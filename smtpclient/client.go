// Package smtpclient implements an SMTP client (RFC 821 / RFC 5321) with
// ESMTP extensions: EHLO capability discovery, STARTTLS, and AUTH
// (PLAIN / LOGIN / CRAM-MD5 / XOAUTH).
package smtpclient

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/smtp"
	"github.com/fenwick-labs/classictext/tlsadapt"
)

// ContextDialer is satisfied by *net.Dialer and by any context-aware
// dialer, including golang.org/x/net/proxy's SOCKS5/HTTP-CONNECT dialers.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// serviceNotAvailableCode is the SMTP "service not available" reply code
// (RFC 5321 §4.2.2); a reply bearing it is surfaced as a ConnectionClosedError.
const serviceNotAvailableCode = int(smtp.ReplyServiceNotAvailable)

// Client is an SMTP client for sending mail.
type Client struct {
	conn      *textline.Conn
	netConn   net.Conn
	hostname  string // Server hostname from greeting.
	localName string // Client identity for EHLO/HELO.
	exts      smtp.Extensions
	logger    *slog.Logger
	tls       bool
	busy      bool // True while a DATA handover stream is outstanding.
	upgrader  tlsadapt.Upgrader

	lastReply textline.Reply
}

// Option configures a Client.
type Option func(*options)

type options struct {
	dialer    ContextDialer
	timeout   time.Duration
	localName string
	upgrader  tlsadapt.Upgrader
	logger    *slog.Logger
}

// WithDialer sets a custom dialer for the connection.
func WithDialer(d ContextDialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithProxyDialer routes the connection through d, typically a
// golang.org/x/net/proxy dialer (e.g. proxy.SOCKS5) obtained via
// proxy.FromURL. Dialers that don't implement proxy.ContextDialer are
// wrapped; their Dial call cannot itself be canceled by ctx.
func WithProxyDialer(d proxy.Dialer) Option {
	return func(o *options) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			o.dialer = cd
			return
		}
		o.dialer = contextDialerFunc(func(_ context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		})
	}
}

type contextDialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (f contextDialerFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// WithTimeout sets the overall timeout for dial + greeting + EHLO.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLocalName sets the hostname used in EHLO/HELO.
func WithLocalName(name string) Option {
	return func(o *options) { o.localName = name }
}

// WithTLSUpgrader sets the collaborator used by StartTLS to perform the
// handshake. Defaults to [tlsadapt.StdlibUpgrader].
func WithTLSUpgrader(u tlsadapt.Upgrader) Option {
	return func(o *options) { o.upgrader = u }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Dial connects to the SMTP server at addr, reads the greeting, and sends
// EHLO (falling back to HELO if EHLO is rejected).
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	nc, err := o.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtpclient: dial %s: %w", addr, err)
	}

	c := newClient(nc, o)
	c.conn.SetDeadlineFromContext(ctx)

	if err := c.readGreeting(); err != nil {
		nc.Close()
		return nil, err
	}
	if err := c.ehlo(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an already-connected net.Conn as an SMTP client. The
// greeting must not have been read yet.
func NewClient(nc net.Conn, localName string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	o.localName = localName
	for _, opt := range opts {
		opt(o)
	}

	c := newClient(nc, o)
	if err := c.readGreeting(); err != nil {
		return nil, err
	}
	if err := c.ehlo(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func defaultOptions() *options {
	return &options{
		dialer:    &net.Dialer{},
		timeout:   30 * time.Second,
		localName: "localhost",
		upgrader:  tlsadapt.StdlibUpgrader{},
		logger:    slog.Default(),
	}
}

func newClient(nc net.Conn, o *options) *Client {
	return &Client{
		conn:      textline.NewConn(nc, serviceNotAvailableCode),
		netConn:   nc,
		localName: o.localName,
		logger:    o.logger,
		upgrader:  o.upgrader,
	}
}

func (c *Client) readGreeting() error {
	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return fmt.Errorf("smtpclient: reading greeting: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyServiceReady) {
		return replyToError(reply)
	}
	if len(reply.Lines) > 0 {
		if fields := strings.Fields(reply.Lines[0]); len(fields) > 0 {
			c.hostname = fields[0]
		}
	}
	return nil
}

// ehlo sends EHLO and falls back to HELO if rejected (RFC 5321 §4.1.1.1).
func (c *Client) ehlo(ctx context.Context) error {
	c.conn.SetDeadlineFromContext(ctx)

	reply, err := c.conn.Cmd(textline.FramingMultiline, "EHLO %s", c.localName)
	if err != nil {
		return fmt.Errorf("smtpclient: EHLO: %w", err)
	}
	c.lastReply = reply

	if reply.Code == int(smtp.ReplyOK) {
		c.exts = smtp.ParseEHLOResponse(reply.Lines)
		c.logger.Debug("smtp ehlo", "host", c.localName, "extensions", c.exts.Keywords())
		return nil
	}

	if reply.Code == int(smtp.ReplySyntaxError) || reply.Code == int(smtp.ReplyCommandNotImpl) {
		reply, err = c.conn.Cmd(textline.FramingMultiline, "HELO %s", c.localName)
		if err != nil {
			return fmt.Errorf("smtpclient: HELO: %w", err)
		}
		c.lastReply = reply
		if reply.Code != int(smtp.ReplyOK) {
			return replyToError(reply)
		}
		c.exts = nil
		return nil
	}

	return replyToError(reply)
}

// ELogin is the ESMTP (EHLO-based) variant of the initial login handshake;
// it re-issues EHLO on the current connection, refreshing the advertised
// extension set. Useful after a STARTTLS upgrade performed out of band.
func (c *Client) ELogin(ctx context.Context) error {
	return c.ehlo(ctx)
}

// Login re-issues HELO, dropping any previously advertised extensions.
// Useful for talking to a server known not to support ESMTP.
func (c *Client) Login(ctx context.Context) error {
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.Cmd(textline.FramingMultiline, "HELO %s", c.localName)
	if err != nil {
		return fmt.Errorf("smtpclient: HELO: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyOK) {
		return replyToError(reply)
	}
	c.exts = nil
	return nil
}

// Extensions returns the extensions advertised by the server in the last
// EHLO response. Returns nil if the server only supports HELO.
func (c *Client) Extensions() smtp.Extensions {
	return c.exts
}

// LastReply returns the most recently received reply, whether the command
// that produced it succeeded or failed.
func (c *Client) LastReply() textline.Reply {
	return c.lastReply
}

// GetEnhancedReplyCode parses the last reply's leading "X.Y.Z" enhanced
// status code (RFC 3463), returning ok=false if none was present.
func (c *Client) GetEnhancedReplyCode() (code smtp.EnhancedCode, ok bool) {
	if len(c.lastReply.Lines) == 0 {
		return smtp.EnhancedCode{}, false
	}
	code, _, parsed := smtp.ParseEnhancedCodeText(c.lastReply.Lines[0])
	return code, parsed
}

func (c *Client) checkNotBusy() error {
	if c.busy {
		return fmt.Errorf("smtpclient: a DATA stream handover is still outstanding; call CompletePendingCommand first")
	}
	return nil
}

// Mail sends the MAIL FROM command with optional extension parameters
// (RFC 5321 §4.1.1.2, RFC 1870 SIZE, RFC 6152 8BITMIME, RFC 6531 SMTPUTF8,
// RFC 3461 DSN). The wire framing forbids a space between "FROM:" and the
// reverse-path, enforced via textline.Conn.SendCommand's bindTight mode.
func (c *Client) Mail(ctx context.Context, from string, opts ...MailOption) error {
	if err := c.checkNotBusy(); err != nil {
		return err
	}
	c.conn.SetDeadlineFromContext(ctx)

	var mo mailOptions
	for _, opt := range opts {
		opt(&mo)
	}
	args := fmt.Sprintf("<%s>", from)
	if mo.size > 0 {
		args += fmt.Sprintf(" SIZE=%d", mo.size)
	}
	if mo.body != "" {
		args += fmt.Sprintf(" BODY=%s", mo.body)
	}
	if mo.smtpUTF8 {
		args += " SMTPUTF8"
	}
	if mo.dsnRet != "" {
		args += fmt.Sprintf(" RET=%s", mo.dsnRet)
	}
	if mo.dsnEnvID != "" {
		args += fmt.Sprintf(" ENVID=%s", mo.dsnEnvID)
	}
	for _, p := range mo.extra {
		if p.value == "" {
			args += " " + p.name
		} else {
			args += fmt.Sprintf(" %s=%s", p.name, p.value)
		}
	}

	if err := c.conn.SendCommand("MAIL FROM:", args, true); err != nil {
		return fmt.Errorf("smtpclient: MAIL FROM: %w", err)
	}
	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return fmt.Errorf("smtpclient: MAIL FROM: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyOK) {
		return replyToError(reply)
	}
	return nil
}

// Rcpt sends the RCPT TO command with optional extension parameters
// (RFC 5321 §4.1.1.3, RFC 3461 DSN).
func (c *Client) Rcpt(ctx context.Context, to string, opts ...RcptOption) error {
	if err := c.checkNotBusy(); err != nil {
		return err
	}
	c.conn.SetDeadlineFromContext(ctx)

	var ro rcptOptions
	for _, opt := range opts {
		opt(&ro)
	}
	args := fmt.Sprintf("<%s>", to)
	if ro.dsnNotify != "" {
		args += fmt.Sprintf(" NOTIFY=%s", ro.dsnNotify)
	}
	if ro.dsnOrcpt != "" {
		args += fmt.Sprintf(" ORCPT=%s", ro.dsnOrcpt)
	}
	for _, p := range ro.extra {
		if p.value == "" {
			args += " " + p.name
		} else {
			args += fmt.Sprintf(" %s=%s", p.name, p.value)
		}
	}

	if err := c.conn.SendCommand("RCPT TO:", args, true); err != nil {
		return fmt.Errorf("smtpclient: RCPT TO: %w", err)
	}
	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return fmt.Errorf("smtpclient: RCPT TO: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyOK) {
		rcptErr := replyToError(reply)
		c.logger.Debug("smtp rcpt rejected", "to", to, "code", smtp.ReplyCode(reply.Code), "permanent", rcptErr.Permanent())
		return rcptErr
	}
	return nil
}

// SetSender is a convenience wrapper around Mail that collapses the result
// to a boolean instead of a classified error.
func (c *Client) SetSender(ctx context.Context, from string) bool {
	return c.Mail(ctx, from) == nil
}

// AddRecipient is a convenience wrapper around Rcpt that collapses the
// result to a boolean instead of a classified error.
func (c *Client) AddRecipient(ctx context.Context, to string) bool {
	return c.Rcpt(ctx, to) == nil
}

// ServerMaxSize returns the maximum message size advertised by the server
// via the SIZE extension (RFC 1870), or 0 if not advertised.
func (c *Client) ServerMaxSize() int64 {
	if c.exts == nil {
		return 0
	}
	param := c.exts.Param(smtp.ExtSIZE)
	if param == "" {
		return 0
	}
	var n int64
	fmt.Sscanf(param, "%d", &n)
	return n
}

// StartData issues the DATA command. On a positive-intermediate (354)
// reply, it hands ownership of the stream over to the caller as a
// [*textline.DotWriter]: the caller writes the dot-stuffed body, closes
// the writer, and calls CompletePendingCommand to read the final reply.
// On any other reply, no writer is returned and the denial is surfaced as
// an error rather than silently propagated through a stream.
func (c *Client) StartData(ctx context.Context) (*textline.DotWriter, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	c.conn.SetDeadlineFromContext(ctx)

	reply, err := c.conn.Cmd(textline.FramingMultiline, "DATA")
	if err != nil {
		return nil, fmt.Errorf("smtpclient: DATA: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyStartMailInput) {
		return nil, replyToError(reply)
	}
	c.busy = true
	return c.conn.DotWriter(), nil
}

// CompletePendingCommand reads the final reply after the caller has closed
// a handed-over DotWriter (from StartData), and reports whether it was a
// positive completion.
func (c *Client) CompletePendingCommand(ctx context.Context) (bool, error) {
	c.busy = false
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return false, fmt.Errorf("smtpclient: reading final reply: %w", err)
	}
	c.lastReply = reply
	return smtp.ReplyCode(reply.Code).Class() == smtp.ClassPositiveCompletion, nil
}

// Data sends the DATA command and streams the message body from r,
// dot-stuffing it automatically, then completes the pending command. This
// is the convenience path; StartData/CompletePendingCommand give direct
// handover control for streaming producers.
func (c *Client) Data(ctx context.Context, r io.Reader) error {
	dw, err := c.StartData(ctx)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dw, r); err != nil {
		dw.Close()
		c.busy = false
		return fmt.Errorf("smtpclient: writing DATA body: %w", err)
	}
	if err := dw.Close(); err != nil {
		c.busy = false
		return fmt.Errorf("smtpclient: closing DATA body: %w", err)
	}
	ok, err := c.CompletePendingCommand(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return replyToError(c.lastReply)
	}
	return nil
}

// StartTLS sends the STARTTLS command and upgrades the connection to TLS
// (RFC 3207) via the configured [tlsadapt.Upgrader]. After a successful
// upgrade, it re-issues EHLO to refresh the server's extension list.
// config drives the handshake when the upgrader is a StdlibUpgrader without
// a Config of its own; any other upgrader receives only config.ServerName.
func (c *Client) StartTLS(ctx context.Context, config *tls.Config) error {
	if err := c.checkNotBusy(); err != nil {
		return err
	}
	c.conn.SetDeadlineFromContext(ctx)

	reply, err := c.conn.Cmd(textline.FramingMultiline, "STARTTLS")
	if err != nil {
		return fmt.Errorf("smtpclient: STARTTLS: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyServiceReady) {
		return replyToError(reply)
	}

	serverName := ""
	if config != nil {
		serverName = config.ServerName
	}
	upgrader := c.upgrader
	if su, ok := upgrader.(tlsadapt.StdlibUpgrader); ok && su.Config == nil && config != nil {
		upgrader = tlsadapt.StdlibUpgrader{Config: config}
	}
	upgraded, err := upgrader.Upgrade(ctx, c.netConn, serverName)
	if err != nil {
		return fmt.Errorf("smtpclient: TLS handshake: %w", err)
	}

	c.netConn = upgraded
	c.conn.ReplaceConn(upgraded)
	c.tls = true

	return c.ehlo(ctx)
}

// IsTLS reports whether the connection is using TLS.
func (c *Client) IsTLS() bool {
	return c.tls
}

// Auth performs SASL authentication using the given mechanism (RFC 4954).
// XOAUTH is treated specially: a positive-intermediate reply to the
// initial AUTH line is accepted as success, since that mechanism expects
// the server to complete the exchange externally rather than issue a
// genuine 334 challenge.
func (c *Client) Auth(ctx context.Context, mech smtp.SASLMechanism) (bool, error) {
	c.conn.SetDeadlineFromContext(ctx)

	initialResp, err := mech.Start()
	if err != nil {
		return false, fmt.Errorf("smtpclient: auth start: %w", err)
	}

	var cmdLine string
	if initialResp != nil {
		cmdLine = fmt.Sprintf("AUTH %s %s", mech.Name(), base64.StdEncoding.EncodeToString(initialResp))
	} else {
		cmdLine = fmt.Sprintf("AUTH %s", mech.Name())
	}
	if err := c.conn.WriteLine(cmdLine); err != nil {
		return false, fmt.Errorf("smtpclient: auth write: %w", err)
	}

	isXOAuth := mech.Name() == "XOAUTH"

	for {
		reply, err := c.conn.ReadReply(textline.FramingMultiline)
		if err != nil {
			return false, fmt.Errorf("smtpclient: auth read: %w", err)
		}
		c.lastReply = reply

		code := smtp.ReplyCode(reply.Code)
		if code.Class() == smtp.ClassPositiveCompletion {
			return true, nil
		}
		if isXOAuth && code.Class() == smtp.ClassPositiveIntermediate {
			return true, nil
		}
		if code.Class() != smtp.ClassPositiveIntermediate {
			return false, nil
		}

		challengeStr := ""
		if len(reply.Lines) > 0 {
			challengeStr = reply.Lines[0]
		}
		challenge, err := base64.StdEncoding.DecodeString(challengeStr)
		if err != nil {
			return false, fmt.Errorf("smtpclient: auth decode challenge: %w", err)
		}

		resp, err := mech.Next(challenge)
		if err != nil {
			c.conn.WriteLine("*")
			c.conn.ReadReply(textline.FramingMultiline)
			return false, fmt.Errorf("smtpclient: auth mechanism: %w", err)
		}

		encoded := base64.StdEncoding.EncodeToString(resp)
		if err := c.conn.WriteLine(encoded); err != nil {
			return false, fmt.Errorf("smtpclient: auth response: %w", err)
		}
	}
}

// SubmitMessage performs STARTTLS (if available and not already active),
// AUTH, and sends the message. This is the typical workflow for message
// submission (RFC 6409, port 587).
func (c *Client) SubmitMessage(ctx context.Context, mech smtp.SASLMechanism, tlsConfig *tls.Config, from string, to []string, r io.Reader) error {
	if !c.tls && c.exts.Has(smtp.ExtSTARTTLS) && tlsConfig != nil {
		if err := c.StartTLS(ctx, tlsConfig); err != nil {
			return fmt.Errorf("smtpclient: submission STARTTLS: %w", err)
		}
	}
	ok, err := c.Auth(ctx, mech)
	if err != nil {
		return fmt.Errorf("smtpclient: submission AUTH: %w", err)
	}
	if !ok {
		return replyToError(c.lastReply)
	}
	return c.SendMail(ctx, from, to, r)
}

// SendMail is a convenience method that performs MAIL FROM, RCPT TO for
// each recipient, and DATA in a single call. Recipients that address the
// same mailbox (RFC 5321 §2.4 comparison rules) as one already sent are
// skipped rather than issued a second RCPT TO.
func (c *Client) SendMail(ctx context.Context, from string, to []string, r io.Reader) error {
	if err := c.Mail(ctx, from); err != nil {
		return err
	}
	var seen []smtp.Mailbox
	for _, rcpt := range to {
		if mbox, err := smtp.ParseMailbox(rcpt); err == nil {
			duplicate := false
			for _, s := range seen {
				if s.Equal(mbox) {
					duplicate = true
					break
				}
			}
			if duplicate {
				continue
			}
			seen = append(seen, mbox)
		}
		if err := c.Rcpt(ctx, rcpt); err != nil {
			return err
		}
	}
	return c.Data(ctx, r)
}

func (c *Client) simpleCmd(ctx context.Context, verb string) (smtp.ReplyCode, error) {
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.Cmd(textline.FramingMultiline, "%s", verb)
	if err != nil {
		return 0, fmt.Errorf("smtpclient: %s: %w", verb, err)
	}
	c.lastReply = reply
	return smtp.ReplyCode(reply.Code), nil
}

func (c *Client) argCmd(ctx context.Context, verb, args string) (smtp.ReplyCode, error) {
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.Cmd(textline.FramingMultiline, "%s %s", verb, args)
	if err != nil {
		return 0, fmt.Errorf("smtpclient: %s: %w", verb, err)
	}
	c.lastReply = reply
	return smtp.ReplyCode(reply.Code), nil
}

// Reset sends RSET to abort the current transaction (RFC 5321 §4.1.1.5).
func (c *Client) Reset(ctx context.Context) error {
	code, err := c.simpleCmd(ctx, "RSET")
	if err != nil {
		return err
	}
	if code != smtp.ReplyOK {
		return replyToError(c.lastReply)
	}
	return nil
}

// Verify sends VRFY to ask the server to confirm a mailbox (RFC 5321 §3.5).
func (c *Client) Verify(ctx context.Context, user string) (smtp.ReplyCode, error) {
	return c.argCmd(ctx, "VRFY", user)
}

// Expand sends EXPN to ask the server to expand a mailing list (RFC 5321 §3.5).
func (c *Client) Expand(ctx context.Context, list string) (smtp.ReplyCode, error) {
	return c.argCmd(ctx, "EXPN", list)
}

// Noop sends NOOP as a keepalive (RFC 5321 §4.1.1.9).
func (c *Client) Noop(ctx context.Context) error {
	code, err := c.simpleCmd(ctx, "NOOP")
	if err != nil {
		return err
	}
	if code != smtp.ReplyOK {
		return replyToError(c.lastReply)
	}
	return nil
}

// Help sends HELP, optionally for a specific command or topic.
func (c *Client) Help(ctx context.Context, topic string) (smtp.ReplyCode, error) {
	if topic == "" {
		return c.simpleCmd(ctx, "HELP")
	}
	return c.argCmd(ctx, "HELP", topic)
}

// Send, Soml, and Saml implement the historical SEND/SOML/SAML commands
// (RFC 821 §4.1.1), superseded by MAIL but retained for legacy relays that
// still answer them.
func (c *Client) Send(ctx context.Context, from string) error {
	return c.legacyMailVariant(ctx, "SEND FROM:", from)
}

func (c *Client) Soml(ctx context.Context, from string) error {
	return c.legacyMailVariant(ctx, "SOML FROM:", from)
}

func (c *Client) Saml(ctx context.Context, from string) error {
	return c.legacyMailVariant(ctx, "SAML FROM:", from)
}

func (c *Client) legacyMailVariant(ctx context.Context, verb, from string) error {
	c.conn.SetDeadlineFromContext(ctx)
	if err := c.conn.SendCommand(verb, fmt.Sprintf("<%s>", from), true); err != nil {
		return fmt.Errorf("smtpclient: %s: %w", verb, err)
	}
	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return fmt.Errorf("smtpclient: %s: %w", verb, err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyOK) {
		return replyToError(reply)
	}
	return nil
}

// Turn sends TURN, requesting the server swap sender/receiver roles (RFC
// 821 §4.1.1); almost universally refused by modern servers.
func (c *Client) Turn(ctx context.Context) (smtp.ReplyCode, error) {
	return c.simpleCmd(ctx, "TURN")
}

// Bdat sends a BDAT chunk (RFC 3030). Set last=true for the final chunk.
func (c *Client) Bdat(ctx context.Context, data []byte, last bool) error {
	if err := c.checkNotBusy(); err != nil {
		return err
	}
	c.conn.SetDeadlineFromContext(ctx)

	cmd := fmt.Sprintf("BDAT %d", len(data))
	if last {
		cmd += " LAST"
	}
	if err := c.conn.WriteLine(cmd); err != nil {
		return fmt.Errorf("smtpclient: BDAT: %w", err)
	}

	bw := c.conn.BufWriter()
	if _, err := bw.Write(data); err != nil {
		return fmt.Errorf("smtpclient: BDAT write: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("smtpclient: BDAT flush: %w", err)
	}

	reply, err := c.conn.ReadReply(textline.FramingMultiline)
	if err != nil {
		return fmt.Errorf("smtpclient: BDAT reply: %w", err)
	}
	c.lastReply = reply
	if reply.Code != int(smtp.ReplyOK) {
		return replyToError(reply)
	}
	return nil
}

// Close sends QUIT and closes the connection (RFC 5321 §4.1.1.10).
func (c *Client) Close() error {
	c.conn.Cmd(textline.FramingMultiline, "QUIT") // Best effort; ignore errors.
	return c.netConn.Close()
}

// replyToError converts a textline.Reply to an *smtp.SMTPError.
func replyToError(reply textline.Reply) *smtp.SMTPError {
	msg := strings.Join(reply.Lines, "\n")

	enhanced := smtp.EnhancedCode{}
	if len(reply.Lines) > 0 {
		code, rest, ok := smtp.ParseEnhancedCodeText(reply.Lines[0])
		if ok {
			enhanced = code
			if len(reply.Lines) == 1 {
				msg = rest
			}
		}
	}

	return &smtp.SMTPError{
		Code:         smtp.ReplyCode(reply.Code),
		EnhancedCode: enhanced,
		Message:      msg,
	}
}
