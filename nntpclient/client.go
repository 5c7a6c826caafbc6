package nntpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/nntp"
	"github.com/fenwick-labs/classictext/tlsadapt"
)

// serviceDiscontinuedCode is the NNTP "service discontinued" reply code
// (RFC 977 §3.1); a reply bearing it is surfaced as a ConnectionClosedError.
const serviceDiscontinuedCode = int(nntp.ReplyServiceDiscontinued)

// ContextDialer is satisfied by *net.Dialer and by any context-aware
// dialer, including golang.org/x/net/proxy's SOCKS5/HTTP-CONNECT dialers.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Client is an NNTP client (RFC 977).
type Client struct {
	conn      *textline.Conn
	netConn   net.Conn
	hostname  string
	logger    *slog.Logger
	tls       bool
	busy      bool // True while a POST/IHAVE DotWriter handover is outstanding.
	upgrader  tlsadapt.Upgrader
	canPost   bool
	authed    bool

	currentGroup string
	lastReply    textline.Reply
}

// Option configures a Client.
type Option func(*options)

type options struct {
	dialer   ContextDialer
	timeout  time.Duration
	upgrader tlsadapt.Upgrader
	logger   *slog.Logger
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

// WithTimeout sets the overall timeout for dial + greeting.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
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

func defaultOptions() *options {
	return &options{
		dialer:   &net.Dialer{},
		timeout:  30 * time.Second,
		upgrader: tlsadapt.StdlibUpgrader{},
		logger:   slog.Default(),
	}
}

// Dial connects to the NNTP server at addr and reads the greeting.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	nc, err := o.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nntpclient: dial %s: %w", addr, err)
	}

	c := newClient(nc, o)
	c.conn.SetDeadlineFromContext(ctx)
	if err := c.readGreeting(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an already-connected net.Conn as an NNTP client. The
// greeting must not have been read yet.
func NewClient(nc net.Conn, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c := newClient(nc, o)
	if err := c.readGreeting(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(nc net.Conn, o *options) *Client {
	return &Client{
		conn:     textline.NewConn(nc, serviceDiscontinuedCode),
		netConn:  nc,
		logger:   o.logger,
		upgrader: o.upgrader,
	}
}

func (c *Client) readGreeting() error {
	reply, err := c.conn.ReadReply(textline.FramingSingleLine)
	if err != nil {
		return fmt.Errorf("nntpclient: reading greeting: %w", err)
	}
	c.lastReply = reply
	switch nntp.ReplyCode(reply.Code) {
	case nntp.ReplyServerReadyPosting:
		c.canPost = true
	case nntp.ReplyServerReadyNoPosting:
		c.canPost = false
	default:
		return replyToError(reply)
	}
	if len(reply.Lines) > 0 {
		if fields := strings.Fields(reply.Lines[0]); len(fields) > 0 {
			c.hostname = fields[0]
		}
	}
	c.logger.Debug("nntp connected", "posting", c.canPost)
	return nil
}

// CanPost reports whether the server's greeting allowed posting.
func (c *Client) CanPost() bool {
	return c.canPost
}

// IsAuthenticated reports whether Authenticate has succeeded on this
// connection.
func (c *Client) IsAuthenticated() bool {
	return c.authed
}

// LastReply returns the most recently received reply.
func (c *Client) LastReply() textline.Reply {
	return c.lastReply
}

func (c *Client) checkNotBusy() error {
	if c.busy {
		return fmt.Errorf("nntpclient: a POST/IHAVE stream handover is still outstanding; call CompletePendingCommand first")
	}
	return nil
}

func (c *Client) cmd(ctx context.Context, format string, args ...any) (textline.Reply, error) {
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.Cmd(textline.FramingSingleLine, format, args...)
	if err != nil {
		return textline.Reply{}, fmt.Errorf("nntpclient: command failed: %w", err)
	}
	c.lastReply = reply
	return reply, nil
}

// SelectGroup issues GROUP, selecting name as the current newsgroup and
// parsing its article-count/first/last/name (RFC 977 §3.6). Posting
// permission is always UNKNOWN since GROUP's reply carries no such token.
func (c *Client) SelectGroup(ctx context.Context, name string) (nntp.NewsgroupInfo, error) {
	reply, err := c.cmd(ctx, "GROUP %s", name)
	if err != nil {
		return nntp.NewsgroupInfo{}, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyGroupSelected {
		return nntp.NewsgroupInfo{}, replyToError(reply)
	}
	info, perr := parseGroupReply(reply)
	if perr != nil {
		return nntp.NewsgroupInfo{}, perr
	}
	c.currentGroup = info.Name
	return info, nil
}

// articleArg builds the optional argument for ARTICLE/HEAD/BODY/STAT:
// empty selects the current article, id selects by message-id, number
// selects by article number.
func articleArg(id string, number int, byNumber bool) string {
	switch {
	case id != "":
		return id
	case byNumber:
		return strconv.Itoa(number)
	default:
		return ""
	}
}

func (c *Client) statVerb(ctx context.Context, verb, arg string) (nntp.ArticleLocator, error) {
	var reply textline.Reply
	var err error
	if arg == "" {
		reply, err = c.cmd(ctx, "%s", verb)
	} else {
		reply, err = c.cmd(ctx, "%s %s", verb, arg)
	}
	if err != nil {
		return nntp.ArticleLocator{}, err
	}
	if !nntp.ReplyCode(reply.Code).IsPositive() {
		return nntp.ArticleLocator{}, replyToError(reply)
	}
	return parseArticlePointer(reply)
}

// Stat selects the current article without retrieving it.
func (c *Client) Stat(ctx context.Context) (nntp.ArticleLocator, error) {
	return c.statVerb(ctx, "STAT", "")
}

// StatByID selects an article by message-id without retrieving it and,
// per RFC 977, does not move the server's current-article cursor.
func (c *Client) StatByID(ctx context.Context, id string) (nntp.ArticleLocator, error) {
	return c.statVerb(ctx, "STAT", id)
}

// StatByNumber selects an article by number without retrieving it.
func (c *Client) StatByNumber(ctx context.Context, number int) (nntp.ArticleLocator, error) {
	return c.statVerb(ctx, "STAT", strconv.Itoa(number))
}

func (c *Client) retrieveVerb(ctx context.Context, verb, arg string) (nntp.ArticleLocator, *textline.DotReader, error) {
	if err := c.checkNotBusy(); err != nil {
		return nntp.ArticleLocator{}, nil, err
	}
	var reply textline.Reply
	var err error
	if arg == "" {
		reply, err = c.cmd(ctx, "%s", verb)
	} else {
		reply, err = c.cmd(ctx, "%s %s", verb, arg)
	}
	if err != nil {
		return nntp.ArticleLocator{}, nil, err
	}
	if !nntp.ReplyCode(reply.Code).IsPositive() {
		return nntp.ArticleLocator{}, nil, replyToError(reply)
	}
	loc, perr := parseArticlePointer(reply)
	if perr != nil {
		return nntp.ArticleLocator{}, nil, perr
	}
	c.busy = true
	return loc, &handoverDotReader{Client: c, DotReader: c.conn.DotReader()}, nil
}

// handoverDotReader clears the client's busy flag once the caller has
// fully drained the handed-over article stream.
type handoverDotReader struct {
	*Client
	*textline.DotReader
}

func (h *handoverDotReader) Read(p []byte) (int, error) {
	n, err := h.DotReader.Read(p)
	if err != nil {
		h.Client.busy = false
	}
	return n, err
}

// RetrieveArticle issues ARTICLE (current article) and hands over a
// DotReader for the full article (headers and body).
func (c *Client) RetrieveArticle(ctx context.Context) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "ARTICLE", "")
}

// RetrieveArticleByID issues ARTICLE <id>.
func (c *Client) RetrieveArticleByID(ctx context.Context, id string) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "ARTICLE", id)
}

// RetrieveArticleByNumber issues ARTICLE <number>.
func (c *Client) RetrieveArticleByNumber(ctx context.Context, number int) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "ARTICLE", strconv.Itoa(number))
}

// RetrieveArticleHeader issues HEAD (current article).
func (c *Client) RetrieveArticleHeader(ctx context.Context) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "HEAD", "")
}

// RetrieveArticleHeaderByID issues HEAD <id>.
func (c *Client) RetrieveArticleHeaderByID(ctx context.Context, id string) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "HEAD", id)
}

// RetrieveArticleHeaderByNumber issues HEAD <number>.
func (c *Client) RetrieveArticleHeaderByNumber(ctx context.Context, number int) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "HEAD", strconv.Itoa(number))
}

// RetrieveArticleBody issues BODY (current article).
func (c *Client) RetrieveArticleBody(ctx context.Context) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "BODY", "")
}

// RetrieveArticleBodyByID issues BODY <id>.
func (c *Client) RetrieveArticleBodyByID(ctx context.Context, id string) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "BODY", id)
}

// RetrieveArticleBodyByNumber issues BODY <number>.
func (c *Client) RetrieveArticleBodyByNumber(ctx context.Context, number int) (nntp.ArticleLocator, *textline.DotReader, error) {
	return c.retrieveVerb(ctx, "BODY", strconv.Itoa(number))
}

// SelectPreviousArticle issues LAST.
func (c *Client) SelectPreviousArticle(ctx context.Context) (nntp.ArticleLocator, error) {
	return c.statVerb(ctx, "LAST", "")
}

// SelectNextArticle issues NEXT.
func (c *Client) SelectNextArticle(ctx context.Context) (nntp.ArticleLocator, error) {
	return c.statVerb(ctx, "NEXT", "")
}

// readDotLines reads a dot-terminated listing as individual lines (used
// by LIST, HELP, NEWGROUPS, NEWNEWS, and XOVER).
func readDotLines(dr *textline.DotReader) ([]string, error) {
	scanner := bufio.NewScanner(dr)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("nntpclient: reading listing: %w", err)
	}
	return lines, nil
}

// ListNewsgroups issues LIST and parses the full newsgroup listing (RFC
// 977 §3.6). A malformed entry aborts the whole call with a
// *nntp.MalformedError.
func (c *Client) ListNewsgroups(ctx context.Context) ([]nntp.NewsgroupInfo, error) {
	return c.list(ctx, "LIST")
}

// ListNewsgroupsMatching issues LIST ACTIVE <wildmat> (RFC 2980 §2.1.1);
// the wildmat is evaluated server-side.
func (c *Client) ListNewsgroupsMatching(ctx context.Context, wildmat string) ([]nntp.NewsgroupInfo, error) {
	return c.list(ctx, fmt.Sprintf("LIST ACTIVE %s", wildmat))
}

func (c *Client) list(ctx context.Context, command string) ([]nntp.NewsgroupInfo, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "%s", command)
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyListFollows {
		return nil, replyToError(reply)
	}
	lines, err := readDotLines(c.conn.DotReader())
	if err != nil {
		return nil, err
	}
	groups := make([]nntp.NewsgroupInfo, 0, len(lines))
	for _, line := range lines {
		info, perr := parseListEntry(line)
		if perr != nil {
			return nil, perr
		}
		groups = append(groups, info)
	}
	return groups, nil
}

// ListNewGroups issues NEWGROUPS (RFC 977 §3.10), returning newsgroups
// created since the query's date/time.
func (c *Client) ListNewGroups(ctx context.Context, query nntp.NewGroupsOrNewsQuery) ([]nntp.NewsgroupInfo, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "NEWGROUPS %s", query.FormatArgs())
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyNewNewsgroupsFollow {
		return nil, replyToError(reply)
	}
	lines, err := readDotLines(c.conn.DotReader())
	if err != nil {
		return nil, err
	}
	groups := make([]nntp.NewsgroupInfo, 0, len(lines))
	for _, line := range lines {
		info, perr := parseListEntry(line)
		if perr != nil {
			return nil, perr
		}
		groups = append(groups, info)
	}
	return groups, nil
}

// ListNewNews issues NEWNEWS (RFC 977 §3.11), returning the message-ids of
// articles posted to query.Newsgroups since the query's date/time.
func (c *Client) ListNewNews(ctx context.Context, query nntp.NewGroupsOrNewsQuery) ([]string, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "NEWNEWS %s", query.FormatNewNewsArgs())
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyNewArticleIDsFollow {
		return nil, replyToError(reply)
	}
	return readDotLines(c.conn.DotReader())
}

// Overview issues XOVER for a single article number (RFC 2980 §2.8).
func (c *Client) Overview(ctx context.Context, number int) ([]nntp.Overview, error) {
	return c.overview(ctx, strconv.Itoa(number))
}

// OverviewRange issues XOVER for an inclusive article-number range.
func (c *Client) OverviewRange(ctx context.Context, lo, hi int) ([]nntp.Overview, error) {
	return c.overview(ctx, fmt.Sprintf("%d-%d", lo, hi))
}

func (c *Client) overview(ctx context.Context, arg string) ([]nntp.Overview, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "XOVER %s", arg)
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyOverviewFollows {
		return nil, replyToError(reply)
	}
	lines, err := readDotLines(c.conn.DotReader())
	if err != nil {
		return nil, err
	}
	overviews := make([]nntp.Overview, 0, len(lines))
	for _, line := range lines {
		ov, perr := parseOverviewLine(line)
		if perr != nil {
			return nil, perr
		}
		overviews = append(overviews, ov)
	}
	return overviews, nil
}

// Help issues HELP and returns its dot-terminated text lines.
func (c *Client) Help(ctx context.Context) ([]string, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "HELP")
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != nntp.ReplyHelpText {
		return nil, replyToError(reply)
	}
	return readDotLines(c.conn.DotReader())
}

// Post issues POST. On a positive-intermediate (340) reply, it hands
// ownership of the stream over to the caller as a [*textline.DotWriter]:
// the caller writes the dot-stuffed article, closes the writer, and calls
// CompletePendingCommand to read the final reply.
func (c *Client) Post(ctx context.Context) (*textline.DotWriter, error) {
	return c.startTransfer(ctx, "POST", nntp.ReplySendArticleToPost)
}

// Forward issues IHAVE <id> (RFC 977 §3.5.2), offering to transfer an
// article the caller already has. Same writer-handover contract as Post.
func (c *Client) Forward(ctx context.Context, id string) (*textline.DotWriter, error) {
	return c.startTransfer(ctx, fmt.Sprintf("IHAVE %s", id), nntp.ReplySendArticleToTransfer)
}

func (c *Client) startTransfer(ctx context.Context, command string, wantCode nntp.ReplyCode) (*textline.DotWriter, error) {
	if err := c.checkNotBusy(); err != nil {
		return nil, err
	}
	reply, err := c.cmd(ctx, "%s", command)
	if err != nil {
		return nil, err
	}
	if nntp.ReplyCode(reply.Code) != wantCode {
		return nil, replyToError(reply)
	}
	c.busy = true
	return c.conn.DotWriter(), nil
}

// CompletePendingCommand reads the final reply after the caller has
// closed a handed-over DotWriter (from Post or Forward), reporting
// whether it was a positive completion.
func (c *Client) CompletePendingCommand(ctx context.Context) (bool, error) {
	c.busy = false
	c.conn.SetDeadlineFromContext(ctx)
	reply, err := c.conn.ReadReply(textline.FramingSingleLine)
	if err != nil {
		return false, fmt.Errorf("nntpclient: reading final reply: %w", err)
	}
	c.lastReply = reply
	return nntp.ReplyCode(reply.Code).Class() == nntp.ClassPositiveCompletion, nil
}

// Authenticate performs AUTHINFO USER/PASS (RFC 2980 §3.1.1): it always
// sends AUTHINFO USER first, and only follows up with AUTHINFO PASS if the
// server asks for more (381). Success (281) sets IsAuthenticated.
func (c *Client) Authenticate(ctx context.Context, user, pass string) (bool, error) {
	reply, err := c.cmd(ctx, "AUTHINFO USER %s", user)
	if err != nil {
		return false, err
	}
	if nntp.ReplyCode(reply.Code) == nntp.ReplyMoreAuthInfoRequired {
		reply, err = c.cmd(ctx, "AUTHINFO PASS %s", pass)
		if err != nil {
			return false, err
		}
	}
	ok := nntp.ReplyCode(reply.Code) == nntp.ReplyAuthenticationAccepted
	if ok {
		c.authed = true
		// spec.md §4.6: a server that requires authentication before
		// posting grants that permission here, not at connect time.
		c.canPost = true
	}
	return ok, nil
}

// StartTLS upgrades the connection to TLS via the configured
// [tlsadapt.Upgrader]. RFC 977 predates STARTTLS, but many deployments
// support it as a de facto extension; this is a thin pass-through shared
// with smtpclient.Client.StartTLS.
func (c *Client) StartTLS(ctx context.Context, config *tls.Config) error {
	if err := c.checkNotBusy(); err != nil {
		return err
	}
	c.conn.SetDeadlineFromContext(ctx)

	reply, err := c.cmd(ctx, "STARTTLS")
	if err != nil {
		return err
	}
	if !nntp.ReplyCode(reply.Code).IsPositive() {
		return replyToError(reply)
	}

	serverName := ""
	if config != nil {
		serverName = config.ServerName
	}
	upgraded, err := c.upgrader.Upgrade(ctx, c.netConn, serverName)
	if err != nil {
		return fmt.Errorf("nntpclient: TLS handshake: %w", err)
	}
	c.netConn = upgraded
	c.conn.ReplaceConn(upgraded)
	c.tls = true
	return nil
}

// IsTLS reports whether the connection is using TLS.
func (c *Client) IsTLS() bool {
	return c.tls
}

// Close sends QUIT and closes the connection (RFC 977 §3.9).
func (c *Client) Close() error {
	c.conn.Cmd(textline.FramingSingleLine, "QUIT") // Best effort; ignore errors.
	return c.netConn.Close()
}
