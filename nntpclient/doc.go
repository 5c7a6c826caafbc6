// Package nntpclient implements an NNTP client (RFC 977) with the RFC 2980
// extensions commonly deployed alongside it: LIST ACTIVE wildmat
// filtering, XOVER overview retrieval, and AUTHINFO USER/PASS
// authentication.
package nntpclient
