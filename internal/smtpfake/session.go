package smtpfake

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/smtp"
)

type sessionState int

const (
	stateNew sessionState = iota
	stateGreeted
	stateMail
	stateRcpt
)

type session struct {
	server *Server
	conn   *textline.Conn
	state  sessionState

	esmtp         bool
	tls           bool
	authenticated bool

	reversePath  smtp.ReversePath
	forwardPaths []smtp.ForwardPath
	bdatBuffer   []byte
}

func (s *session) loop() {
	for {
		if s.server.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.server.ReadTimeout))
		}
		line, err := s.conn.ReadLine(textline.MaxCommandLineLen)
		if err != nil {
			return
		}

		verb, args, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		switch verb {
		case "EHLO":
			s.handleHELO(args, true)
		case "HELO":
			s.handleHELO(args, false)
		case "MAIL":
			s.handleMAIL(args)
		case "RCPT":
			s.handleRCPT(args)
		case "DATA":
			s.handleDATA()
		case "BDAT":
			s.handleBDAT(args)
		case "RSET":
			s.resetTransaction()
			s.reply(smtp.ReplyOK, smtp.EnhancedCodeOK, "Reset ok")
		case "NOOP":
			s.reply(smtp.ReplyOK, smtp.EnhancedCodeOK, "OK")
		case "VRFY":
			s.reply(smtp.ReplyCannotVRFY, smtp.EnhancedCodeOK, "Cannot VRFY user, but will accept message")
		case "QUIT":
			s.reply(smtp.ReplyServiceClosing, smtp.EnhancedCodeOK, s.server.Hostname+" closing connection")
			return
		case "STARTTLS":
			s.handleSTARTTLS()
		case "AUTH":
			s.handleAUTH(args)
		default:
			s.reply(smtp.ReplySyntaxError, smtp.EnhancedCodeInvalidCommand, "Command not recognized")
		}
	}
}

func (s *session) reply(code smtp.ReplyCode, enhanced smtp.EnhancedCode, msg string) {
	if !enhanced.IsZero() {
		msg = fmt.Sprintf("%s %s", enhanced, msg)
	}
	s.conn.WriteReply(int(code), msg)
}

func (s *session) replyMulti(code smtp.ReplyCode, lines ...string) {
	s.conn.WriteReply(int(code), lines...)
}

func (s *session) handleHELO(args string, esmtp bool) {
	if args == "" {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "hostname required")
		return
	}
	s.resetTransaction()
	s.esmtp = esmtp
	s.state = stateGreeted

	if !esmtp {
		s.reply(smtp.ReplyOK, smtp.EnhancedCodeOK, fmt.Sprintf("%s Hello %s", s.server.Hostname, args))
		return
	}

	lines := []string{fmt.Sprintf("%s Hello %s", s.server.Hostname, args), "PIPELINING", "8BITMIME", "ENHANCEDSTATUSCODES", "DSN", "SMTPUTF8", "CHUNKING"}
	if s.server.MaxMessageSize > 0 {
		lines = append(lines, fmt.Sprintf("SIZE %d", s.server.MaxMessageSize))
	}
	if s.server.TLSConfig != nil && !s.tls {
		lines = append(lines, "STARTTLS")
	}
	if s.server.OnAuth != nil && !s.authenticated {
		lines = append(lines, "AUTH PLAIN LOGIN CRAM-MD5")
	}
	s.replyMulti(smtp.ReplyOK, lines...)
}

func (s *session) handleMAIL(args string) {
	if s.state < stateGreeted {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "send EHLO/HELO first")
		return
	}
	if s.state >= stateMail {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "MAIL already specified")
		return
	}
	if s.server.RequireAuth && !s.authenticated {
		s.reply(smtp.ReplyAuthRequired, smtp.EnhancedCodeAuthRequired, "authentication required")
		return
	}
	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "FROM:") {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "syntax: MAIL FROM:<address>")
		return
	}
	pathStr, _, _ := strings.Cut(strings.TrimSpace(args[5:]), " ")
	rp, err := smtp.ParseReversePath(pathStr)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeBadSenderSyntax, "invalid sender address")
		return
	}
	s.reversePath = rp
	s.forwardPaths = nil
	s.state = stateMail
	s.reply(smtp.ReplyOK, smtp.EnhancedCodeOtherAddress, "originator ok")
}

func (s *session) handleRCPT(args string) {
	if s.state < stateMail {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "send MAIL first")
		return
	}
	if len(s.forwardPaths) >= s.server.MaxRecipients {
		s.reply(smtp.ReplyInsufficientStorage, smtp.EnhancedCodeTooManyRecipients, "too many recipients")
		return
	}
	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "TO:") {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "syntax: RCPT TO:<address>")
		return
	}
	pathStr, _, _ := strings.Cut(strings.TrimSpace(args[3:]), " ")
	fp, err := smtp.ParseForwardPath(pathStr)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeBadDestSyntax, "invalid recipient address")
		return
	}

	if s.server.OnRcpt != nil {
		if err := s.server.OnRcpt(context.Background(), fp); err != nil {
			if smtpErr, ok := err.(*smtp.SMTPError); ok {
				s.reply(smtpErr.Code, smtpErr.EnhancedCode, smtpErr.Message)
			} else {
				s.reply(smtp.ReplyLocalError, smtp.EnhancedCodeOtherNetwork, "internal error")
			}
			return
		}
	}

	s.forwardPaths = append(s.forwardPaths, fp)
	if s.state < stateRcpt {
		s.state = stateRcpt
	}
	s.reply(smtp.ReplyOK, smtp.EnhancedCodeDestValid, "recipient ok")
}

func (s *session) handleDATA() {
	if s.state < stateRcpt {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "send RCPT first")
		return
	}
	s.reply(smtp.ReplyStartMailInput, smtp.EnhancedCode{}, "start mail input; end with <CRLF>.<CRLF>")

	body, err := io.ReadAll(s.conn.DotReader())
	if err != nil {
		s.reply(smtp.ReplyLocalError, smtp.EnhancedCodeOtherNetwork, "error reading body")
		s.resetTransaction()
		s.state = stateGreeted
		return
	}
	s.deliver(body)
}

func (s *session) handleBDAT(args string) {
	if s.state < stateRcpt {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "send RCPT first")
		return
	}
	parts := strings.Fields(args)
	if len(parts) < 1 {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "syntax: BDAT <size> [LAST]")
		return
	}
	var size int64
	if _, err := fmt.Sscanf(parts[0], "%d", &size); err != nil || size < 0 {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid BDAT size")
		return
	}
	last := len(parts) >= 2 && strings.ToUpper(parts[1]) == "LAST"

	chunk := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(s.conn.BufReader(), chunk); err != nil {
			return
		}
	}
	s.bdatBuffer = append(s.bdatBuffer, chunk...)

	if !last {
		s.reply(smtp.ReplyOK, smtp.EnhancedCodeOK, fmt.Sprintf("%d bytes received", size))
		return
	}
	s.deliver(s.bdatBuffer)
}

func (s *session) deliver(body []byte) {
	if s.server.OnData != nil {
		if err := s.server.OnData(context.Background(), s.reversePath, s.forwardPaths, body); err != nil {
			if smtpErr, ok := err.(*smtp.SMTPError); ok {
				s.reply(smtpErr.Code, smtpErr.EnhancedCode, smtpErr.Message)
			} else {
				s.reply(smtp.ReplyLocalError, smtp.EnhancedCodeOtherNetwork, "internal error")
			}
			s.resetTransaction()
			s.state = stateGreeted
			return
		}
	}
	s.reply(smtp.ReplyOK, smtp.EnhancedCodeOK, "message accepted")
	s.resetTransaction()
	s.state = stateGreeted
}

func (s *session) handleAUTH(args string) {
	if s.server.OnAuth == nil {
		s.reply(smtp.ReplyCommandNotImpl, smtp.EnhancedCodeInvalidCommand, "AUTH not available")
		return
	}
	if s.authenticated {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "already authenticated")
		return
	}
	mechanism, initialResp, _ := strings.Cut(args, " ")
	mechanism = strings.ToUpper(mechanism)

	switch mechanism {
	case "PLAIN":
		s.authPlain(initialResp)
	case "LOGIN":
		s.authLogin()
	case "CRAM-MD5":
		s.authCramMD5()
	default:
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeInvalidParams, "unrecognized mechanism")
	}
}

func (s *session) authPlain(initialResp string) {
	decoded, ok := s.decodeOrChallenge(initialResp)
	if !ok {
		return
	}
	parts := bytes.SplitN(decoded, []byte{0}, 3)
	if len(parts) != 3 {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid PLAIN data")
		return
	}
	s.finishAuth("PLAIN", string(parts[1]), string(parts[2]))
}

func (s *session) decodeOrChallenge(initialResp string) ([]byte, bool) {
	if initialResp != "" && initialResp != "=" {
		decoded, err := base64.StdEncoding.DecodeString(initialResp)
		if err != nil {
			s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid base64")
			return nil, false
		}
		return decoded, true
	}
	s.reply(smtp.ReplyAuthContinue, smtp.EnhancedCode{}, "")
	line, err := s.conn.ReadLine(textline.MaxCommandLineLen)
	if err != nil {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid base64")
		return nil, false
	}
	return decoded, true
}

func (s *session) authLogin() {
	s.reply(smtp.ReplyAuthContinue, smtp.EnhancedCode{}, base64.StdEncoding.EncodeToString([]byte("Username:")))
	userLine, err := s.conn.ReadLine(textline.MaxCommandLineLen)
	if err != nil {
		return
	}
	userBytes, err := base64.StdEncoding.DecodeString(userLine)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid base64")
		return
	}

	s.reply(smtp.ReplyAuthContinue, smtp.EnhancedCode{}, base64.StdEncoding.EncodeToString([]byte("Password:")))
	passLine, err := s.conn.ReadLine(textline.MaxCommandLineLen)
	if err != nil {
		return
	}
	passBytes, err := base64.StdEncoding.DecodeString(passLine)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid base64")
		return
	}
	s.finishAuth("LOGIN", string(userBytes), string(passBytes))
}

func (s *session) authCramMD5() {
	challenge := fmt.Sprintf("<%d@%s>", time.Now().UnixNano(), s.server.Hostname)
	s.reply(smtp.ReplyAuthContinue, smtp.EnhancedCode{}, base64.StdEncoding.EncodeToString([]byte(challenge)))

	line, err := s.conn.ReadLine(textline.MaxCommandLineLen)
	if err != nil {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid base64")
		return
	}
	resp := string(decoded)
	spaceIdx := strings.LastIndex(resp, " ")
	if spaceIdx < 0 {
		s.reply(smtp.ReplySyntaxParamError, smtp.EnhancedCodeSyntaxError, "invalid CRAM-MD5 response")
		return
	}
	username := resp[:spaceIdx]
	digest := resp[spaceIdx+1:]
	// The handler computes HMAC-MD5 itself; pass the challenge alongside the digest.
	s.finishAuth("CRAM-MD5", username, challenge+":"+digest)
}

func (s *session) finishAuth(mechanism, username, password string) {
	if err := s.server.OnAuth(context.Background(), mechanism, username, password); err != nil {
		if smtpErr, ok := err.(*smtp.SMTPError); ok {
			s.reply(smtpErr.Code, smtpErr.EnhancedCode, smtpErr.Message)
		} else {
			s.reply(smtp.ReplyAuthFailed, smtp.EnhancedCodeAuthCredentials, "authentication failed")
		}
		return
	}
	s.authenticated = true
	s.reply(smtp.ReplyAuthOK, smtp.EnhancedCodeOK, "authentication successful")
}

func (s *session) handleSTARTTLS() {
	if s.server.TLSConfig == nil {
		s.reply(smtp.ReplyCommandNotImpl, smtp.EnhancedCodeInvalidCommand, "STARTTLS not available")
		return
	}
	if s.tls {
		s.reply(smtp.ReplyBadSequence, smtp.EnhancedCodeInvalidCommand, "already running TLS")
		return
	}
	s.reply(smtp.ReplyServiceReady, smtp.EnhancedCode{}, "ready to start TLS")

	tlsConn := tls.Server(s.conn.NetConn(), s.server.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		return
	}
	s.conn.ReplaceConn(tlsConn)
	s.tls = true
	s.resetTransaction()
	s.state = stateNew
	s.esmtp = false
}

func (s *session) resetTransaction() {
	s.reversePath = smtp.ReversePath{}
	s.forwardPaths = nil
	s.bdatBuffer = nil
}
