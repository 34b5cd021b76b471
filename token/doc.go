// Package token peeks inside access tokens without verifying them.
//
// This is a client-side package. The identity provider is the only party
// that validates signatures; the client merely reads public claims to learn
// when a token expires, which user it belongs to, and what role it carries
// when a provider response leaves those fields blank.
//
// # What this package must NOT do
//
//   - Verify signatures or decide that a token is trustworthy. [Peek]
//     explicitly skips signature validation and says so in its name.
//   - Gate any security decision. Role checks against peeked claims are
//     display hints; the provider enforces the real ones.
package token
