package bbusb

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/gousb"

	"github.com/Thiagojm/otp_go_cli/otp"
)

// FTDI vendor/product for BitBabbler
const (
	ftdiVendorID = 0x0403
	bbProductID  = 0x7840
)

// mpsse command bytes
const (
	mpsseNoClkDiv5     = 0x8A
	mpsseNoAdaptiveClk = 0x97
	mpsseNo3PhaseClk   = 0x8D
	mpsseSetDataLow    = 0x80
	mpsseSetDataHigh   = 0x82
	mpsseSetClkDivisor = 0x86
	mpsseSendImmediate = 0x87
	mpsseNoLoopback    = 0x85

	// read bytes in, MSB first, sample on +ve edge
	mpsseDataByteInPosMSB = 0x20
)

// ftdi SIO requests (vendor-specific)
const (
	ftdiReqReset        = 0x00
	ftdiReqSetFlowCtrl  = 0x02
	ftdiReqSetEventChar = 0x06
	ftdiReqSetErrorChar = 0x07
	ftdiReqSetLatency   = 0x09
	ftdiReqSetBitmode   = 0x0B
)

const (
	ftdiResetSIO = 0

	ftdiFlowRtsCts = 0x0100

	ftdiBitmodeReset = 0x0000
	ftdiBitmodeMpsse = 0x0200
)

// DeviceInfo contains key metadata for a detected BitBabbler device.
// Fields may be empty if not available on the current system.
type DeviceInfo struct {
	// DevicePath is the system path to the device, if available.
	DevicePath string
	// HardwareIDs lists registry hardware IDs (Windows only).
	HardwareIDs []string
	// FriendlyName is a human-friendly device label if present.
	FriendlyName string
}

// Session is an open BitBabbler FTDI device in MPSSE mode. Opening a
// session programs the MPSSE engine, which takes tens of milliseconds, so a
// session is held for the life of the program and draws are made through
// borrowed handles (see Opener).
type Session struct {
	ctx       *gousb.Context
	dev       *gousb.Device
	cfg       *gousb.Config
	intf      *gousb.Interface
	inEp      *gousb.InEndpoint
	outEp     *gousb.OutEndpoint
	maxPacket int
}

// Open opens the first BitBabbler FTDI device and initializes MPSSE.
// bitrate is the desired bit clock; 0 picks the vendor default 2.5 MHz.
// latencyMs is the FTDI latency timer; 0 picks 1 ms.
func Open(bitrate uint, latencyMs uint8) (*Session, error) {
	if bitrate == 0 {
		bitrate = 2_500_000
	}
	if latencyMs == 0 {
		latencyMs = 1
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(ftdiVendorID), gousb.ID(bbProductID))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, errors.New("BitBabbler device not found")
	}
	_ = dev.SetAutoDetach(true)

	s := &Session{ctx: ctx, dev: dev}
	if err := s.claim(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.initMPSSE(bitrate, latencyMs); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// claim walks config/interface/endpoints, keeping whatever was opened for
// cleanup by Close on failure.
func (s *Session) claim() error {
	cfg, err := s.dev.Config(1)
	if err != nil {
		return err
	}
	s.cfg = cfg
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		return err
	}
	s.intf = intf

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			in, err := intf.InEndpoint(ep.Number)
			if err != nil {
				return err
			}
			s.inEp = in
		case gousb.EndpointDirectionOut:
			out, err := intf.OutEndpoint(ep.Number)
			if err != nil {
				return err
			}
			s.outEp = out
		}
	}
	if s.inEp == nil || s.outEp == nil {
		return errors.New("bulk endpoints not found")
	}
	s.maxPacket = int(s.inEp.Desc.MaxPacketSize)
	return nil
}

// initMPSSE runs the vendor init sequence: reset, purge, latency and flow
// control, MPSSE bitmode, AA/AB sync check, then clock programming.
func (s *Session) initMPSSE(bitrate uint, latencyMs uint8) error {
	if err := s.ftdiReset(); err != nil {
		return err
	}
	if err := s.purgeRead(); err != nil {
		return err
	}
	if err := s.ftdiSetSpecialChars(0, false, 0, false); err != nil {
		return err
	}
	if err := s.ftdiSetLatencyTimer(latencyMs); err != nil {
		return err
	}
	if err := s.ftdiSetFlowControl(ftdiFlowRtsCts); err != nil {
		return err
	}
	if err := s.ftdiSetBitmode(ftdiBitmodeReset, 0); err != nil {
		return err
	}
	if err := s.ftdiSetBitmode(ftdiBitmodeMpsse, 0); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	// Bad-command sync: 0xAA and 0xAB must echo back as errors. Retry once;
	// the first attempt can race the mode switch.
	ok := s.checkSync(0xAA) && s.checkSync(0xAB)
	if !ok {
		ok = s.checkSync(0xAA) && s.checkSync(0xAB)
	}
	if !ok {
		return errors.New("MPSSE sync failed")
	}

	clkDiv := uint16(30_000_000/bitrate - 1)
	cmd := []byte{
		mpsseNoClkDiv5,
		mpsseNoAdaptiveClk,
		mpsseNo3PhaseClk,
		mpsseSetDataLow,
		0x00, // outputs low
		0x0B, // direction: CLK, DO, CS outputs
		mpsseSetDataHigh,
		0x00,
		0x00,
		mpsseSetClkDivisor,
		byte(clkDiv & 0xFF),
		byte(clkDiv >> 8),
		mpsseNoLoopback,
	}
	if _, err := s.outEp.Write(cmd); err != nil {
		return err
	}
	time.Sleep(30 * time.Millisecond)
	return s.purgeRead()
}

// Close releases USB resources.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.intf != nil {
		s.intf.Close()
	}
	if s.cfg != nil {
		s.cfg.Close()
	}
	if s.dev != nil {
		s.dev.Close()
	}
	if s.ctx != nil {
		s.ctx.Close()
	}
}

// Uint32 draws one 32-bit random word from the device.
func (s *Session) Uint32() (uint32, error) {
	var buf [4]byte
	if err := s.readRandom(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// handle is a borrowed view of a Session satisfying otp.WordSource. Closing
// the handle releases the borrow only; the underlying USB session stays
// open for the next password.
type handle struct {
	s        *Session
	released bool
}

func (h *handle) Uint32() (uint32, error) {
	if h.released {
		return 0, errors.New("handle already released")
	}
	return h.s.Uint32()
}

func (h *handle) Close() error {
	h.released = true
	return nil
}

// Opener hands out a borrowed handle per password generation. The session
// itself must be closed by the caller when the program exits.
func (s *Session) Opener() otp.OpenFunc {
	return func() (otp.WordSource, error) {
		if s == nil {
			return nil, errors.New("session is nil")
		}
		return &handle{s: s}, nil
	}
}

// readRandom fills buf with random bytes. It issues an MPSSE read command
// and strips the FTDI 2-byte status header from each incoming packet.
func (s *Session) readRandom(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n := len(buf)
	cmd := []byte{
		mpsseDataByteInPosMSB,
		byte((n - 1) & 0xFF),
		byte((n - 1) >> 8),
		mpsseSendImmediate,
	}
	if _, err := s.outEp.Write(cmd); err != nil {
		return err
	}

	got := 0
	tmp := make([]byte, roundUpToMaxPacket(n, s.maxPacket)+s.maxPacket)
	for got < n {
		m, err := s.inEp.Read(tmp)
		if err != nil {
			return err
		}
		got += compactPackets(buf[got:], tmp[:m], s.maxPacket)
	}
	return nil
}

// compactPackets copies payload bytes from src into dst, skipping the FTDI
// 2-byte modem-status header at the start of each maxPacket-sized chunk.
// It returns the number of payload bytes copied, capped at len(dst).
func compactPackets(dst, src []byte, maxPacket int) int {
	if maxPacket <= 2 {
		return 0
	}
	copied := 0
	for offset := 0; offset < len(src) && copied < len(dst); {
		chunk := len(src) - offset
		if chunk > maxPacket {
			chunk = maxPacket
		}
		if chunk <= 2 {
			break
		}
		usable := chunk - 2
		if usable > len(dst)-copied {
			usable = len(dst) - copied
		}
		copy(dst[copied:copied+usable], src[offset+2:offset+2+usable])
		copied += usable
		offset += chunk
	}
	return copied
}

func roundUpToMaxPacket(n, max int) int {
	if max <= 0 {
		return n
	}
	if n%max == 0 {
		return n
	}
	return (n/max + 1) * max
}

// FTDI vendor control helpers

func (s *Session) control(req uint8, value uint16, index uint16) error {
	typ := uint8(gousb.ControlOut) | uint8(gousb.ControlVendor) | uint8(gousb.ControlDevice)
	_, err := s.dev.Control(typ, req, value, index, nil)
	return err
}

func (s *Session) ftdiReset() error {
	return s.control(ftdiReqReset, ftdiResetSIO, 1)
}

func (s *Session) ftdiSetBitmode(mode uint16, mask uint8) error {
	return s.control(ftdiReqSetBitmode, mode|uint16(mask), 1)
}

func (s *Session) ftdiSetLatencyTimer(ms uint8) error {
	return s.control(ftdiReqSetLatency, uint16(ms), 1)
}

func (s *Session) ftdiSetFlowControl(mode uint16) error {
	return s.control(ftdiReqSetFlowCtrl, 0, mode|1)
}

func (s *Session) ftdiSetSpecialChars(event byte, evtEnable bool, errc byte, errEnable bool) error {
	v := uint16(event)
	if evtEnable {
		v |= 0x0100
	}
	if err := s.control(ftdiReqSetEventChar, v, 1); err != nil {
		return err
	}
	v = uint16(errc)
	if errEnable {
		v |= 0x0100
	}
	return s.control(ftdiReqSetErrorChar, v, 1)
}

func (s *Session) purgeRead() error {
	buf := make([]byte, 8192)
	for i := 0; i < 10; i++ {
		n, _ := s.inEp.Read(buf)
		if n <= 2 {
			break
		}
	}
	return nil
}

func (s *Session) checkSync(cmd byte) bool {
	msg := []byte{cmd, mpsseSendImmediate}
	if _, err := s.outEp.Write(msg); err != nil {
		return false
	}
	buf := make([]byte, 512)
	for i := 0; i < 10; i++ {
		n, _ := s.inEp.Read(buf)
		if n == 4 && buf[2] == 0xFA && buf[3] == cmd {
			return true
		}
	}
	return false
}
