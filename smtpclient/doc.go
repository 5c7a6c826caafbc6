// Package smtpclient implements the client half of the SMTP transaction
// (RFC 5321), built on [github.com/fenwick-labs/classictext/internal/textline]
// for the command/reply wire format shared with nntpclient.
//
// # Quick Start
//
// Use [Dial] to connect to an SMTP server, then call [Client.SendMail]
// to send a message:
//
//	c, err := smtpclient.Dial(ctx, "mail.example.com:25")
//	if err != nil { ... }
//	defer c.Close()
//	err = c.SendMail(ctx, "from@example.com", []string{"to@example.com"}, body)
//
// SendMail deduplicates recipients that address the same mailbox under
// RFC 5321 §2.4 comparison rules ([smtp.Mailbox.Equal]: local-part
// case-sensitive, domain case-insensitive) so a caller building a
// recipient list from multiple sources doesn't issue the same RCPT TO
// twice.
//
// # Message Submission (RFC 6409)
//
// For port 587 submission with STARTTLS and authentication, use
// [Client.SubmitMessage]:
//
//	err = c.SubmitMessage(ctx, smtp.PlainAuth("", user, pass), tlsCfg,
//	    "from@example.com", []string{"to@example.com"}, body)
//
// # Step-by-Step API
//
// For fine-grained control, use [Client.Mail], [Client.Rcpt], and
// [Client.Data] individually. Options like [WithSize], [WithBody], and DSN
// parameters can be passed to Mail and Rcpt. [WithParam] and
// [WithRcptParam] pass through any ESMTP parameter this package doesn't
// model explicitly (e.g. REQUIRETLS, RFC 8689), so a caller isn't blocked
// waiting on a dedicated option for every extension a server might
// advertise.
//
// # STARTTLS
//
// Call [Client.StartTLS] to upgrade an existing connection to TLS.
// After a successful upgrade, the client re-issues EHLO automatically.
//
// # Authentication
//
// Call [Client.Auth] with any [smtp.SASLMechanism] (PLAIN, LOGIN, CRAM-MD5).
//
// # CHUNKING (RFC 3030)
//
// Call [Client.Bdat] to send message data in binary chunks without
// dot-stuffing.
//
// # Enhanced status codes (RFC 2034)
//
// When a server advertises ENHANCEDSTATUSCODES, [Client.GetEnhancedReplyCode]
// and the [smtp.EnhancedCode] embedded in returned [smtp.SMTPError] values
// give callers the X.Y.Z classification alongside the three-digit reply
// code, via [smtp.ParseEnhancedCodeText].
package smtpclient
