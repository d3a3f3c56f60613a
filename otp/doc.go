// Package otp generates short one-time passwords from raw hardware entropy.
// It defines the word-source contract that device packages (truerng, bbusb,
// pseudorng) implement, and the mapping from 32-bit random words to visible
// ASCII characters.
package otp
