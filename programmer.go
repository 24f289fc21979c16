package ftsboot

import (
	"encoding/binary"
	"time"
)

// ECC returns the checksum the bootloader accumulates while programming: the
// XOR of every payload byte.
func ECC(image []byte) byte {
	var ecc byte
	for _, b := range image {
		ecc ^= b
	}
	return ecc
}

// ValidateImage checks that image fits the controller flash.
func ValidateImage(image []byte) error {
	if len(image) < MinImageSize || len(image) > MaxImageSize {
		return &ImageSizeError{Length: len(image)}
	}
	return nil
}

// Flash enters bootloader mode and writes image to the chip.
func (d *Device) Flash(image []byte) error {
	if err := ValidateImage(image); err != nil {
		return err
	}
	if err := d.EnterBootloader(); err != nil {
		return err
	}
	return d.writeFirmware(image)
}

// WriteFirmware erases the chip, programs image, verifies the ECC and restarts
// the new firmware. The chip must already be in bootloader mode.
//
// On an ECC mismatch the chip is left in bootloader mode.
func (d *Device) WriteFirmware(image []byte) error {
	if err := ValidateImage(image); err != nil {
		return err
	}
	return d.writeFirmware(image)
}

func (d *Device) writeFirmware(image []byte) error {
	if err := d.Erase(); err != nil {
		return err
	}
	ecc, err := d.program(image)
	if err != nil {
		return err
	}
	d.sleep(50 * time.Millisecond)
	if err := d.VerifyECC(ecc); err != nil {
		return err
	}
	pkgLog.Infof("reset the new FW")
	return d.ResetFirmware()
}

// Erase clears the application area, and the panel parameter area on
// variants that have one.
func (d *Device) Erase() error {
	v, err := d.Variant()
	if err != nil {
		return err
	}

	pkgLog.Infof("erase current app")
	if err := d.write(cmdEraseApp); err != nil {
		return transportErr("erase app", err)
	}
	if v.ErasesPanelRegion() {
		if err := d.write(cmdErasePanel); err != nil {
			return transportErr("erase panel", err)
		}
	}
	d.sleep(v.DelayEraseFlash)
	return nil
}

// Program announces the image length and writes image in 128 byte packets.
// It returns the XOR of the bytes sent, to be checked with VerifyECC.
func (d *Device) Program(image []byte) (byte, error) {
	if err := ValidateImage(image); err != nil {
		return 0, err
	}
	return d.program(image)
}

func (d *Device) program(image []byte) (byte, error) {
	n := uint32(len(image))
	if err := d.write(cmdFirmwareSize, byte(n>>16), byte(n>>8), byte(n)); err != nil {
		return 0, transportErr("set firmware size", err)
	}

	pkgLog.Infof("write firmware to CTPM flash")
	var ecc byte
	for offset := 0; offset < len(image); offset += writePacketLen {
		chunk := image[offset:]
		if len(chunk) > writePacketLen {
			chunk = chunk[:writePacketLen]
		}
		if err := d.sendPacket(offset, chunk, &ecc); err != nil {
			return 0, err
		}
		d.progress("write", offset, len(chunk), len(image))
	}
	return ecc, nil
}

func (d *Device) sendPacket(offset int, data []byte, ecc *byte) error {
	pkgLog.Debugf("Write pkt [%x] @%x - len %d", cmdWriteFlash, offset, len(data))

	pkt := make([]byte, packetMetaLen, packetMetaLen+len(data))
	pkt[0] = cmdWriteFlash
	binary.BigEndian.PutUint16(pkt[2:], uint16(offset))
	binary.BigEndian.PutUint16(pkt[4:], uint16(len(data)))
	for _, b := range data {
		*ecc ^= b
	}
	pkt = append(pkt, data...)

	if err := d.c.Tx(pkt, nil); err != nil {
		return &progError{Address: uint32(offset), Err: transportErr("write flash", err)}
	}
	d.waitPacket(offset / writePacketLen)
	return nil
}

// waitPacket polls the flash status register until the chip reports pktNum
// as programmed. Giving up is not an error: a failed packet shows up as an
// ECC mismatch.
func (d *Device) waitPacket(pktNum int) {
	want := uint16(0x1000 + pktNum)
	for i := 0; i < statusPolls; i++ {
		d.sleep(5 * time.Millisecond)
		r, err := d.read([]byte{cmdFlashStatus}, 2)
		if err != nil {
			pkgLog.Debugf("flash status: %v", err)
			continue
		}
		if binary.BigEndian.Uint16(r) == want {
			return
		}
	}
	pkgLog.Debugf("packet %d not acknowledged", pktNum)
}

// VerifyECC compares the chip ECC register with the expected value.
func (d *Device) VerifyECC(expected byte) error {
	pkgLog.Infof("verify checksum")
	actual, err := d.ReadRegister(cmdReadECC)
	if err != nil {
		return transportErr("read ECC", err)
	}
	if actual != expected {
		return &ECCMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
