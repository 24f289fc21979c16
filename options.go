package ftsboot

import "time"

// PacketHook is called after every bootloader packet has been transferred.
// Op is "read" or "write", offset and length describe the packet and total is
// the size of the whole transfer.
type PacketHook func(op string, offset, length, total int)

// Option configures a Device.
type Option func(*Device)

// WithSleeper replaces time.Sleep for every protocol delay. Tests use it to
// record the delays instead of waiting them out.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(d *Device) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithPacketHook sets a callback used to track transfer progress.
func WithPacketHook(hook PacketHook) Option {
	return func(d *Device) {
		d.hook = hook
	}
}
