package ftsboot

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// ReadFirmware streams the whole flash (MaxImageSize bytes) to w in 256 byte
// packets and then restarts the application. The chip must already be in
// bootloader mode.
//
// Every packet is written to w in full, even a short final one.
func (d *Device) ReadFirmware(w io.Writer) error {
	pkgLog.Infof("read the FW from flash")
	var buf [readPacketLen]byte
	for offset := 0; offset < MaxImageSize; offset += readPacketLen {
		length := readPacketLen
		if MaxImageSize-offset < readPacketLen {
			length = MaxImageSize - offset
		}

		d.sleep(10 * time.Millisecond)
		pkgLog.Debugf("Read pkt [%x] @%x - len %d", cmdReadFlash, offset, length)
		hdr := []byte{cmdReadFlash, 0x00, byte(offset >> 8), byte(offset)}
		if err := d.c.Tx(hdr, buf[:length]); err != nil {
			return transportErr("read flash", err)
		}
		if _, err := w.Write(buf[:]); err != nil {
			return errors.Wrap(err, "failed to write firmware dump")
		}
		d.progress("read", offset, length, MaxImageSize)
	}

	pkgLog.Infof("reset the FW")
	return d.ResetFirmware()
}

// Dump enters bootloader mode and reads the firmware into w.
func (d *Device) Dump(w io.Writer) error {
	if err := d.EnterBootloader(); err != nil {
		return err
	}
	return d.ReadFirmware(w)
}
