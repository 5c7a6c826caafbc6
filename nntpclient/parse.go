package nntpclient

import (
	"strconv"
	"strings"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/nntp"
)

// parseArticlePointer parses the text of an ARTICLE/HEAD/BODY/STAT/LAST/
// NEXT reply (RFC 977 §2.4.2): skip the numeric code (already stripped by
// textline), read the integer article number, then the message-id token.
func parseArticlePointer(reply textline.Reply) (nntp.ArticleLocator, error) {
	if len(reply.Lines) == 0 {
		return nntp.ArticleLocator{}, &nntp.MalformedError{Context: "article pointer", Line: ""}
	}
	fields := strings.Fields(reply.Lines[0])
	if len(fields) < 2 {
		return nntp.ArticleLocator{}, &nntp.MalformedError{Context: "article pointer", Line: reply.Lines[0]}
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nntp.ArticleLocator{}, &nntp.MalformedError{Context: "article pointer", Line: reply.Lines[0]}
	}
	return nntp.ArticleLocator{Number: n, ID: fields[1]}, nil
}

// parseGroupReply parses a GROUP reply's text (RFC 977 §3.6): four
// whitespace-separated tokens, count/first/last/name.
func parseGroupReply(reply textline.Reply) (nntp.NewsgroupInfo, error) {
	if len(reply.Lines) == 0 {
		return nntp.NewsgroupInfo{}, &nntp.MalformedError{Context: "GROUP reply", Line: ""}
	}
	fields := strings.Fields(reply.Lines[0])
	if len(fields) < 4 {
		return nntp.NewsgroupInfo{}, &nntp.MalformedError{Context: "GROUP reply", Line: reply.Lines[0]}
	}
	count, err1 := strconv.Atoi(fields[0])
	first, err2 := strconv.Atoi(fields[1])
	last, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nntp.NewsgroupInfo{}, &nntp.MalformedError{Context: "GROUP reply", Line: reply.Lines[0]}
	}
	return nntp.NewsgroupInfo{
		Name:              fields[3],
		EstimatedArticles: count,
		First:             first,
		Last:              last,
		PostingPermission: nntp.PostingUnknown,
	}, nil
}

// parseListEntry parses one line of a LIST (or LIST ACTIVE) listing (RFC
// 977 §3.6 / RFC 2980 §2.1.1): "<name> <last> <first> <permission>".
func parseListEntry(line string) (nntp.NewsgroupInfo, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nntp.NewsgroupInfo{}, &nntp.MalformedError{Context: "LIST entry", Line: line}
	}
	last, err1 := strconv.Atoi(fields[1])
	first, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return nntp.NewsgroupInfo{}, &nntp.MalformedError{Context: "LIST entry", Line: line}
	}
	count := last - first + 1
	if count < 0 {
		count = 0
	}
	return nntp.NewsgroupInfo{
		Name:              fields[0],
		EstimatedArticles: count,
		First:             first,
		Last:              last,
		PostingPermission: nntp.ParsePostingPermission(fields[3]),
	}, nil
}

// parseOverviewLine parses one tab-delimited XOVER line (RFC 2980 §2.8):
// number, subject, from, date, message-id, references, bytes, lines, with
// any further tab-delimited fields ignored.
func parseOverviewLine(line string) (nntp.Overview, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nntp.Overview{}, &nntp.MalformedError{Context: "XOVER line", Line: line}
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return nntp.Overview{}, &nntp.MalformedError{Context: "XOVER line", Line: line}
	}
	bytes, err := strconv.Atoi(fields[6])
	if err != nil {
		return nntp.Overview{}, &nntp.MalformedError{Context: "XOVER line", Line: line}
	}
	lines, err := strconv.Atoi(fields[7])
	if err != nil {
		return nntp.Overview{}, &nntp.MalformedError{Context: "XOVER line", Line: line}
	}
	var refs []string
	if fields[5] != "" {
		refs = strings.Fields(fields[5])
	}
	return nntp.Overview{
		Number:     number,
		Subject:    fields[1],
		From:       fields[2],
		Date:       fields[3],
		MessageID:  fields[4],
		References: refs,
		Bytes:      bytes,
		Lines:      lines,
	}, nil
}
