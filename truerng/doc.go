// Package truerng detects a TrueRNG USB device presented as a serial (COM)
// port and exposes it as a 32-bit word source for password generation. The
// device streams random bytes continuously once DTR is asserted; each word
// draw drains 4 bytes from that stream.
package truerng
