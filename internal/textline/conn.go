// Package textline implements the wire substrate shared by the SMTP,
// NNTP, and Telnet-adjacent command/reply clients in this module: buffered
// line reading/writing, coded multi-line reply framing, and dot-stuffed
// payload streaming. It sits between net.Conn and the protocol engines.
package textline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// MaxCommandLineLen is the maximum length of a command line including
// CRLF (RFC 5321 §4.5.3.1.4 for SMTP; generous enough for NNTP commands).
const MaxCommandLineLen = 512

// MaxReplyLineLen is a generous limit for reply lines to prevent memory
// exhaustion from a misbehaving peer.
const MaxReplyLineLen = 2048

// Framing selects how ReadReply recognizes the end of a reply.
type Framing int

const (
	// FramingMultiline implements the SMTP convention (RFC 5321 §4.2): a
	// line "DDD-text" continues, a line "DDD text" or "DDD" ends the reply.
	FramingMultiline Framing = iota
	// FramingSingleLine implements the NNTP convention (RFC 977): every
	// reply is exactly one line. Multi-line payloads (article bodies,
	// listings) are read separately via DotReader once the reply itself
	// has been consumed.
	FramingSingleLine
)

// Conn wraps a net.Conn with buffered reading/writing and reply framing.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	// closingCode is the reply code this protocol uses to announce that
	// the server is going away (421 for SMTP, 400 for NNTP). A reply
	// bearing this code is surfaced as a *ConnectionClosedError.
	closingCode int
}

// NewConn creates a Conn wrapping c. closingCode is the protocol's
// "service unavailable/discontinued" reply code.
func NewConn(c net.Conn, closingCode int) *Conn {
	return &Conn{
		conn:        c,
		r:           bufio.NewReaderSize(c, 4096),
		w:           bufio.NewWriterSize(c, 4096),
		closingCode: closingCode,
	}
}

// ReplaceConn replaces the underlying net.Conn (used after a TLS upgrade)
// and resets the buffered reader/writer, discarding any buffered bytes.
func (c *Conn) ReplaceConn(nc net.Conn) {
	c.conn = nc
	c.r = bufio.NewReaderSize(nc, 4096)
	c.w = bufio.NewWriterSize(nc, 4096)
}

// NetConn returns the underlying net.Conn.
func (c *Conn) NetConn() net.Conn {
	return c.conn
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// SetDeadlineFromContext sets the connection deadline from ctx's deadline,
// clearing it if ctx carries none.
func (c *Conn) SetDeadlineFromContext(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

// SetReadDeadline sets the read deadline on the underlying connection.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// ReadLine reads a single \r\n (or \n) terminated line, not including the
// terminator. It fails if the line exceeds maxLen bytes.
func (c *Conn) ReadLine(maxLen int) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := c.r.ReadLine()
		line = append(line, chunk...)
		if err != nil {
			return "", err
		}
		if !isPrefix {
			break
		}
		if len(line) > maxLen {
			for isPrefix {
				_, isPrefix, err = c.r.ReadLine()
				if err != nil {
					break
				}
			}
			return "", fmt.Errorf("textline: line too long (%d bytes, max %d)", len(line), maxLen)
		}
	}
	if len(line) > maxLen {
		return "", fmt.Errorf("textline: line too long (%d bytes, max %d)", len(line), maxLen)
	}
	return string(line), nil
}

// WriteLine writes line followed by CRLF and flushes.
func (c *Conn) WriteLine(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// WriteLines writes each line followed by CRLF and flushes once.
func (c *Conn) WriteLines(lines ...string) error {
	for _, line := range lines {
		if _, err := c.w.WriteString(line); err != nil {
			return err
		}
		if _, err := c.w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// SendCommand writes "verb args\r\n", or "verbargs\r\n" when bindTight is
// true. bindTight exists for SMTP's "MAIL FROM:" / "RCPT TO:" bindings,
// where the wire framing forbids a space between the verb and the path —
// a constraint callers cannot override.
func (c *Conn) SendCommand(verb, args string, bindTight bool) error {
	var line string
	switch {
	case args == "":
		line = verb
	case bindTight:
		line = verb + args
	default:
		line = verb + " " + args
	}
	return c.WriteLine(line)
}

// Reply represents a parsed reply: a three-digit code plus one or more
// text lines (RFC 5321 §4.2 / RFC 977 §2.4.2).
type Reply struct {
	Code  int
	Lines []string
}

// Text joins the reply lines with "\n" into a single human-readable message.
func (r Reply) Text() string {
	switch len(r.Lines) {
	case 0:
		return ""
	case 1:
		return r.Lines[0]
	default:
		out := r.Lines[0]
		for _, l := range r.Lines[1:] {
			out += "\n" + l
		}
		return out
	}
}

// ReadReply reads one reply using the given framing rule.
func (c *Conn) ReadReply(framing Framing) (Reply, error) {
	if framing == FramingSingleLine {
		return c.readSingleLineReply()
	}
	return c.readMultilineReply()
}

func (c *Conn) readMultilineReply() (Reply, error) {
	var lines []string
	for {
		line, err := c.ReadLine(MaxReplyLineLen)
		if err != nil {
			return Reply{}, fmt.Errorf("textline: reading reply: %w", err)
		}

		code, text, ok := parseCodeLine(line)
		if !ok {
			return Reply{}, &MalformedReplyError{Line: line}
		}

		if len(line) == 3 {
			lines = append(lines, "")
			return c.finishReply(code, lines)
		}

		switch line[3] {
		case '-':
			lines = append(lines, text)
		case ' ':
			lines = append(lines, text)
			return c.finishReply(code, lines)
		default:
			return Reply{}, &MalformedReplyError{Line: line}
		}
	}
}

func (c *Conn) readSingleLineReply() (Reply, error) {
	line, err := c.ReadLine(MaxReplyLineLen)
	if err != nil {
		return Reply{}, fmt.Errorf("textline: reading reply: %w", err)
	}
	code, text, ok := parseCodeLine(line)
	if !ok {
		return Reply{}, &MalformedReplyError{Line: line}
	}
	return c.finishReply(code, []string{text})
}

func (c *Conn) finishReply(code int, lines []string) (Reply, error) {
	r := Reply{Code: code, Lines: lines}
	if c.closingCode != 0 && code == c.closingCode {
		return r, &ConnectionClosedError{Reply: r}
	}
	return r, nil
}

// parseCodeLine splits "DDD<sep>text" into its numeric code and trailing
// text. ok is false if the first three characters are not a decimal
// integer or the line is shorter than three characters.
func parseCodeLine(line string) (code int, text string, ok bool) {
	if len(line) < 3 {
		return 0, "", false
	}
	n, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", false
	}
	if len(line) == 3 {
		return n, "", true
	}
	return n, line[4:], true
}

// WriteReply writes a single- or multi-line reply in "DDD-text"/"DDD text"
// form and flushes.
func (c *Conn) WriteReply(code int, lines ...string) error {
	if len(lines) == 0 {
		lines = []string{""}
	}
	for i, line := range lines {
		sep := byte(' ')
		if i < len(lines)-1 {
			sep = '-'
		}
		if _, err := c.w.WriteString(fmt.Sprintf("%d%c%s\r\n", code, sep, line)); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// Cmd sends a formatted command line and reads the following reply using
// the given framing.
func (c *Conn) Cmd(framing Framing, format string, args ...any) (Reply, error) {
	if err := c.WriteLine(fmt.Sprintf(format, args...)); err != nil {
		return Reply{}, err
	}
	return c.ReadReply(framing)
}

// BufReader returns the underlying buffered reader, needed by DotReader.
func (c *Conn) BufReader() *bufio.Reader {
	return c.r
}

// BufWriter returns the underlying buffered writer, needed by DotWriter.
func (c *Conn) BufWriter() *bufio.Writer {
	return c.w
}

// DotReader returns a reader for a dot-terminated payload embedded in the
// control stream (RFC 5321 §4.5.2 / RFC 977 §2.4.1). The caller must read
// it to completion before the control channel is available again.
func (c *Conn) DotReader() *DotReader {
	return newDotReader(c.r)
}

// DotWriter returns a writer for a dot-terminated payload. Close writes
// the termination sequence and flushes, but never closes the connection.
func (c *Conn) DotWriter() *DotWriter {
	return newDotWriter(c.w)
}

// ParseEnhancedCode extracts a leading "X.Y.Z" enhanced status code (RFC
// 3463) from a reply text line. ok is false (and rest is the original
// text) when no such prefix is present.
func ParseEnhancedCode(text string) (class, subject, detail int, rest string, ok bool) {
	head, tail, hasSpace := cutSpace(text)
	if !hasSpace {
		head, tail = text, ""
	}

	a, b, c2, ok2 := splitTriplet(head)
	if !ok2 || a < 2 || a > 5 {
		return 0, 0, 0, text, false
	}
	return a, b, c2, tail, true
}

func cutSpace(s string) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func splitTriplet(s string) (a, b, c int, ok bool) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	av, err1 := strconv.Atoi(parts[0])
	bv, err2 := strconv.Atoi(parts[1])
	cv, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return av, bv, cv, true
}

// ErrLineTooShort is wrapped by MalformedReplyError when a reply line is
// shorter than three characters.
var ErrLineTooShort = errors.New("textline: reply line too short")
