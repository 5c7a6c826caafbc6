package nntp

import "fmt"

// PostingPermission classifies whether a newsgroup accepts local posting
// (RFC 977's GROUP/LIST fourth token: y/n/m).
type PostingPermission int

const (
	// PostingUnknown is used when the server does not report permission
	// (e.g. a GROUP reply, which carries no posting-flag token at all).
	PostingUnknown PostingPermission = iota
	PostingPermitted
	PostingProhibited
	PostingModerated
)

// String names the permission for logging/debugging.
func (p PostingPermission) String() string {
	switch p {
	case PostingPermitted:
		return "PERMITTED"
	case PostingProhibited:
		return "PROHIBITED"
	case PostingModerated:
		return "MODERATED"
	default:
		return "UNKNOWN"
	}
}

// ParsePostingPermission maps a LIST/LIST ACTIVE fourth-token character to
// a PostingPermission, per RFC 2980 §2.1.1: y/Y permitted, n/N prohibited,
// m/M moderated, anything else unknown.
func ParsePostingPermission(token string) PostingPermission {
	if len(token) == 0 {
		return PostingUnknown
	}
	switch token[0] {
	case 'y', 'Y':
		return PostingPermitted
	case 'n', 'N':
		return PostingProhibited
	case 'm', 'M':
		return PostingModerated
	default:
		return PostingUnknown
	}
}

// NewsgroupInfo describes one newsgroup as reported by GROUP or a LIST
// entry (RFC 977 §2.4.2, §3.6; RFC 2980 §2.1.1).
type NewsgroupInfo struct {
	Name              string
	EstimatedArticles int // Article count estimate (GROUP's second token / LIST's article count).
	First             int
	Last              int
	PostingPermission PostingPermission
}

// ArticleLocator identifies an article by both its group-relative number
// and its (best-effort) message-id, as returned by ARTICLE/HEAD/BODY/STAT/
// LAST/NEXT (RFC 977 §2.4.2). Many servers deviate on the exact id
// formatting, so callers should treat Number as authoritative.
type ArticleLocator struct {
	Number int
	ID     string // Includes the angle brackets, e.g. "<1234@example.com>".
}

func (a ArticleLocator) String() string {
	return fmt.Sprintf("%d %s", a.Number, a.ID)
}

// Overview describes one line of an XOVER response (RFC 2980 §2.8): the
// tab-delimited fields a server reports for a range of articles without
// requiring a full HEAD per article.
type Overview struct {
	Number     int
	Subject    string
	From       string
	Date       string
	MessageID  string
	References []string
	Bytes      int
	Lines      int
}

// NewGroupsOrNewsQuery carries the date/time/distribution parameters
// shared by NEWGROUPS and NEWNEWS (RFC 977 §3.10, §3.11).
type NewGroupsOrNewsQuery struct {
	Date          string // YYMMDD or YYYYMMDD per RFC 3977 extension.
	Time          string // HHMMSS.
	GMT           bool
	Distributions []string // Optional; formatted as " <a,b,c>" when non-empty.
	Newsgroups    []string // NEWNEWS only: comma-joined group list, wildmat-capable.
}

// formatSuffix renders the optional GMT flag and distribution list exactly
// as RFC 977/2980 expect them appended to the date/time arguments.
func (q NewGroupsOrNewsQuery) formatSuffix() string {
	s := ""
	if q.GMT {
		s += " GMT"
	}
	if len(q.Distributions) > 0 {
		s += " <"
		for i, d := range q.Distributions {
			if i > 0 {
				s += ","
			}
			s += d
		}
		s += ">"
	}
	return s
}

// FormatArgs renders the NEWGROUPS argument string: "<date> <time>[ GMT][
// <distributions>]".
func (q NewGroupsOrNewsQuery) FormatArgs() string {
	return fmt.Sprintf("%s %s%s", q.Date, q.Time, q.formatSuffix())
}

// FormatNewNewsArgs renders the NEWNEWS argument string: "<newsgroups>
// <date> <time>[ GMT][ <distributions>]".
func (q NewGroupsOrNewsQuery) FormatNewNewsArgs() string {
	groups := ""
	for i, g := range q.Newsgroups {
		if i > 0 {
			groups += ","
		}
		groups += g
	}
	return fmt.Sprintf("%s %s %s%s", groups, q.Date, q.Time, q.formatSuffix())
}
