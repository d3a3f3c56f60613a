// Package bbusb drives a BitBabbler TRNG (an FTDI MPSSE device) over raw
// USB via gousb and exposes it as a 32-bit word source for password
// generation. MPSSE setup is slow, so one Session is held for the life of
// the program and each password borrows a short-lived handle from it.
package bbusb
