package ftsboot

import (
	"bytes"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// Device is a handle to a touch controller on an I²C bus.
//
// A Device is not safe for concurrent use, and nothing else may talk to the
// chip while it is in bootloader mode.
type Device struct {
	c       conn.Conn
	variant *Variant
	sleep   func(time.Duration)
	hook    PacketHook
}

// Info describes an identified controller.
type Info struct {
	ChipID          byte
	Name            string
	FirmwareVersion byte
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%#x) firmware %d.0.0", i.Name, i.ChipID, i.FirmwareVersion)
}

// New returns a Device talking to the controller at addr on bus b.
func New(b i2c.Bus, addr uint16, opts ...Option) *Device {
	d := &Device{
		c:     &i2c.Dev{Bus: b, Addr: addr},
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) String() string {
	return fmt.Sprintf("ftsboot(%s)", d.c)
}

// Variant returns the variant resolved by Identify.
func (d *Device) Variant() (Variant, error) {
	if d.variant == nil {
		return Variant{}, ErrNotIdentified
	}
	return *d.variant, nil
}

// SetVariant resolves the variant from a known chip ID without talking to the
// chip.
func (d *Device) SetVariant(chipID byte) error {
	v, err := Lookup(chipID)
	if err != nil {
		return err
	}
	d.variant = &v
	return nil
}

// Identify resolves the chip variant and reads the firmware version. If
// forceID is negative the chip ID is read from RegChipID, otherwise forceID is
// used as is.
func (d *Device) Identify(forceID int) (Info, error) {
	var id byte
	if forceID < 0 {
		var err error
		if id, err = d.ReadChipID(); err != nil {
			return Info{}, err
		}
	} else {
		id = byte(forceID)
	}
	if err := d.SetVariant(id); err != nil {
		return Info{}, err
	}
	pkgLog.Infof("chip ID: %#x (%s)", id, d.variant.Name)

	ver, err := d.FirmwareVersion()
	if err != nil {
		return Info{}, err
	}
	pkgLog.Infof("firmware version: %d.0.0", ver)

	return Info{ChipID: id, Name: d.variant.Name, FirmwareVersion: ver}, nil
}

// ReadChipID reads the chip ID register.
func (d *Device) ReadChipID() (byte, error) {
	id, err := d.ReadRegister(RegChipID)
	if err != nil {
		return 0, transportErr("read chip ID", err)
	}
	return id, nil
}

// FirmwareVersion reads the application firmware version register.
func (d *Device) FirmwareVersion() (byte, error) {
	v, err := d.ReadRegister(RegFirmwareVersion)
	if err != nil {
		return 0, transportErr("read firmware version", err)
	}
	return v, nil
}

// WriteRegister writes a single register.
func (d *Device) WriteRegister(reg, value byte) error {
	return d.c.Tx([]byte{reg, value}, nil)
}

// ReadRegister reads a single register in one combined transaction.
func (d *Device) ReadRegister(reg byte) (byte, error) {
	var r [1]byte
	if err := d.c.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (d *Device) write(w ...byte) error {
	return d.c.Tx(w, nil)
}

func (d *Device) read(w []byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.c.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// resetCTPM arms the chip for the bootloader entry sequence. Write errors are
// only logged: the chip may stop acknowledging while it resets.
func (d *Device) resetCTPM(v *Variant) {
	if err := d.WriteRegister(regResetCTPM, upgradeAA); err != nil {
		pkgLog.Debugf("reset CTPM (%#x): %v", upgradeAA, err)
	}
	d.sleep(v.DelayAA)
	if err := d.WriteRegister(regResetCTPM, upgrade55); err != nil {
		pkgLog.Debugf("reset CTPM (%#x): %v", upgrade55, err)
	}
	d.sleep(v.Delay55)
}

// ResetFirmware leaves bootloader mode and restarts the application.
func (d *Device) ResetFirmware() error {
	err := d.write(cmdResetFW)
	d.sleep(100 * time.Millisecond)
	return transportErr("reset firmware", err)
}

var (
	hidToI2CRequest = []byte{0xeb, 0xaa, 0x09}
	hidToI2CReply   = []byte{0xeb, 0xaa, 0x08}
)

// hidToI2C switches an FT5x26 from HID over I²C framing to plain I²C. The
// reply is checked but a mismatch is not fatal.
func (d *Device) hidToI2C() {
	if err := d.write(hidToI2CRequest...); err != nil {
		pkgLog.Debugf("HID to I2C request failed: %v", err)
	}
	r, err := d.read(nil, len(hidToI2CReply))
	switch {
	case err != nil:
		pkgLog.Debugf("HID to I2C reply failed: %v", err)
	case !bytes.Equal(r, hidToI2CReply):
		pkgLog.Debugf("HID to I2C failed %x %x %x", r[0], r[1], r[2])
	}
	d.sleep(10 * time.Millisecond)
}

func (d *Device) progress(op string, offset, length, total int) {
	if d.hook != nil {
		d.hook(op, offset, length, total)
	}
}
