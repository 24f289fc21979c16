package ftsboot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

var errNack = errors.New("i2c: NACK")

// fakeChip simulates the bootloader of an FT5x controller on an I²C bus.
type fakeChip struct {
	chipID    byte
	version   byte
	upgradeID [2]byte
	flash     [MaxImageSize]byte

	ecc        byte
	eccReply   func(ecc byte) byte
	lastPacket int
	hidPending bool

	// fail, when set, can reject a transaction before it is handled.
	fail func(w []byte, r []byte) error
}

func newFakeChip(chipID byte) *fakeChip {
	c := &fakeChip{chipID: chipID, version: 11}
	if v, err := Lookup(chipID); err == nil {
		c.upgradeID = v.UpgradeID
	}
	return c
}

func (c *fakeChip) String() string { return "fakechip" }

func (c *fakeChip) SetSpeed(f physic.Frequency) error { return nil }

func (c *fakeChip) Tx(addr uint16, w, r []byte) error {
	if addr != DefaultAddress {
		return errNack
	}
	if c.fail != nil {
		if err := c.fail(w, r); err != nil {
			return err
		}
	}
	if len(w) == 0 {
		if c.hidPending {
			copy(r, hidToI2CReply)
			c.hidPending = false
		}
		return nil
	}

	switch w[0] {
	case RegChipID:
		fill(r, c.chipID)
	case RegFirmwareVersion:
		fill(r, c.version)
	case cmdReadID:
		copy(r, c.upgradeID[:])
	case 0xeb:
		c.hidPending = bytes.Equal(w, hidToI2CRequest)
	case cmdEraseApp:
		for i := range c.flash {
			c.flash[i] = 0xff
		}
	case cmdWriteFlash:
		off := int(binary.BigEndian.Uint16(w[2:]))
		n := int(binary.BigEndian.Uint16(w[4:]))
		copy(c.flash[off:], w[packetMetaLen:packetMetaLen+n])
		for _, b := range w[packetMetaLen : packetMetaLen+n] {
			c.ecc ^= b
		}
		c.lastPacket = off / writePacketLen
	case cmdFlashStatus:
		if len(r) == 2 {
			binary.BigEndian.PutUint16(r, uint16(0x1000+c.lastPacket))
		}
	case cmdReadECC:
		if len(r) == 1 {
			r[0] = c.ecc
			if c.eccReply != nil {
				r[0] = c.eccReply(c.ecc)
			}
		}
	case cmdReadFlash:
		off := int(binary.BigEndian.Uint16(w[2:]))
		copy(r, c.flash[off:])
	}
	return nil
}

func fill(r []byte, v byte) {
	for i := range r {
		r[i] = v
	}
}

// sleepRecorder records protocol delays instead of waiting.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.delays = append(s.delays, d)
}

func (s *sleepRecorder) count(d time.Duration) int {
	n := 0
	for _, v := range s.delays {
		if v == d {
			n++
		}
	}
	return n
}

type testRig struct {
	chip   *fakeChip
	rec    *i2ctest.Record
	sleeps *sleepRecorder
	dev    *Device
}

// newRig returns an identified device wired to a fake chip through a
// transaction recorder.
func newRig(t *testing.T, chipID byte) *testRig {
	t.Helper()
	r := &testRig{
		chip:   newFakeChip(chipID),
		sleeps: &sleepRecorder{},
	}
	r.rec = &i2ctest.Record{Bus: r.chip}
	r.dev = New(r.rec, DefaultAddress, WithSleeper(r.sleeps.sleep))
	if err := r.dev.SetVariant(chipID); err != nil {
		t.Fatal(err)
	}
	return r
}

// writes returns every recorded write-only transaction.
func (r *testRig) writes() [][]byte {
	var out [][]byte
	for _, op := range r.rec.Ops {
		if len(op.R) == 0 {
			out = append(out, op.W)
		}
	}
	return out
}

func (r *testRig) countWrites(w ...byte) int {
	n := 0
	for _, op := range r.writes() {
		if bytes.Equal(op, w) {
			n++
		}
	}
	return n
}

// packets returns the programming packets in the order they were sent.
func (r *testRig) packets() [][]byte {
	var out [][]byte
	for _, w := range r.writes() {
		if len(w) >= packetMetaLen && w[0] == cmdWriteFlash {
			out = append(out, w)
		}
	}
	return out
}

// captureLogger records formatted log lines.
type captureLogger struct {
	lines []string
}

func (l *captureLogger) Debugf(format string, args ...interface{}) {
	l.lines = append(l.lines, "D "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Infof(format string, args ...interface{}) {
	l.lines = append(l.lines, "I "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Warnf(format string, args ...interface{}) {
	l.lines = append(l.lines, "W "+fmt.Sprintf(format, args...))
}
