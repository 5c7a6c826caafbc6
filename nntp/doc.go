// Package nntp holds the NNTP (RFC 977, RFC 2980) data model shared by the
// nntpclient engine: reply code aliases, newsgroup/article descriptors,
// and the date/time query shape used by NEWGROUPS and NEWNEWS.
package nntp
