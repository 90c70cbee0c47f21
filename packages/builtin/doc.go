// Package builtin provides the functions available inside {{...}} placeholders.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(), date(layout): current time, RFC 3339 or a Go layout
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - random(min, max), randomString(length), randomEmail()
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value)
//   - env(name): value of an OS environment variable
//
// Arguments are literals; quote them when they contain commas.
package builtin
