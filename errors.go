package ftsboot

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBootloaderEntryFailed is returned once every bootloader entry attempt
	// has been used up.
	ErrBootloaderEntryFailed = errors.New("failed to enter bootloader")

	// ErrNotIdentified is returned by operations that need the chip variant
	// before Identify has resolved it.
	ErrNotIdentified = errors.New("chip variant not identified")
)

// UnsupportedChipError is returned for chip IDs missing from the registry.
type UnsupportedChipError struct {
	ChipID byte
}

func (e *UnsupportedChipError) Error() string {
	return fmt.Sprintf("unsupported chip ID: %#x", e.ChipID)
}

// TransportError wraps an I²C failure that aborted an operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ECCMismatchError is returned when the ECC register disagrees with the XOR
// of the programmed bytes. The chip stays in bootloader mode.
type ECCMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *ECCMismatchError) Error() string {
	return fmt.Sprintf("ECC error %02x vs. %02x", e.Actual, e.Expected)
}

// ImageSizeError is returned for images outside [MinImageSize, MaxImageSize].
type ImageSizeError struct {
	Length int
}

func (e *ImageSizeError) Error() string {
	return fmt.Sprintf("invalid firmware length %d: must be between %d and %d bytes",
		e.Length, MinImageSize, MaxImageSize)
}

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

type progError struct {
	Address uint32
	Err     error
}

func (e *progError) Error() string {
	return fmt.Sprintf("error at %X: %v", e.Address, e.Err)
}

func (e *progError) Unwrap() error { return e.Err }
