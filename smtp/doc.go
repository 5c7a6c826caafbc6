// Package smtp provides shared client-side types for the SMTP protocol
// (RFC 821 / RFC 5321 with ESMTP extensions).
//
// This package contains reply codes, enhanced status codes, error types,
// email address parsing, SMTP extension definitions, and SASL authentication
// mechanisms. It is consumed by [github.com/fenwick-labs/classictext/smtpclient].
//
// # Reply Codes
//
// [ReplyCode] constants cover all standard SMTP reply codes. The [SMTPError]
// type carries a reply code, optional [EnhancedCode], and human-readable
// message.
//
// # Address Types
//
// [Mailbox], [ReversePath], and [ForwardPath] represent RFC 5321 email
// addresses with parsing and validation, including support for
// internationalized domain names (RFC 6531). Address literals ("[...]") are
// checked only for their enclosing brackets.
//
// # Authentication
//
// The [SASLMechanism] interface and its implementations ([PlainAuth],
// [LoginAuth], [CramMD5Auth], [XOAuth]) provide client-side SASL
// authentication mechanisms (RFC 4616, RFC 2195, and Google's XOAUTH).
//
// # Extensions
//
// The [Extension] type and [Extensions] map track EHLO-advertised
// capabilities. Use [ParseEHLOResponse] to parse a server's EHLO reply.
package smtp
