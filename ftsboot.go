// Package ftsboot reads and writes the firmware of FocalTech FT5x06, FT5x16
// and FT5x26 capacitive touch controllers over I²C.
//
// The package contains two main components: the variant registry and Device.
// The registry holds the per-chip bootloader parameters published by the
// vendor. Device drives the bootloader protocol (entry handshake, erase,
// program, ECC verification and read-back) against any periph i2c.Bus, so it
// can be used with the Linux i2c-dev driver, a Bus Pirate or an in-memory fake.
//
// Also included is a command line tool, found in the cmd/ftsboot directory,
// that identifies the controller and dumps or flashes its firmware.
package ftsboot

// DefaultAddress is the 7-bit I²C address the controllers answer on.
const DefaultAddress = 0x38

// Application mode registers.
const (
	RegChipID          = 0xa3
	RegFirmwareVersion = 0xa6
)

// Bootloader commands. They are only valid once EnterBootloader succeeded,
// except for the CTPM reset register which is written in application mode.
const (
	cmdReadFlash    = 0x03
	cmdResetFW      = 0x07
	cmdEraseApp     = 0x61
	cmdErasePanel   = 0x63
	cmdFlashStatus  = 0x6a
	cmdReadID       = 0x90
	cmdFirmwareSize = 0xb0
	cmdWriteFlash   = 0xbf
	cmdReadECC      = 0xcc
	regResetCTPM    = 0xfc
)

const (
	upgradeAA = 0xaa
	upgrade55 = 0x55

	upgradeLoop = 30
	statusPolls = 5
)

// Image size limits and packet lengths.
const (
	MinImageSize = 8
	MaxImageSize = 64 * 1024

	writePacketLen = 128
	readPacketLen  = 256
	packetMetaLen  = 6
)
