package ftsboot

import "time"

// Chip IDs reported by RegChipID.
const (
	FT5x06 = 0x55
	FT5x16 = 0x0a
	FT5x26 = 0x54
)

// Variant holds the bootloader parameters of one controller family.
type Variant struct {
	ChipID byte
	Name   string

	// Informational columns of the vendor table.
	MaxTouchPoints int
	AutoCalibrate  bool
	FlashOffset    uint32

	DelayAA         time.Duration // after writing 0xAA to the reset register
	Delay55         time.Duration // after writing 0x55 to the reset register
	UpgradeID       [2]byte       // expected READ-ID reply in bootloader mode
	DelayReadID     time.Duration
	DelayEraseFlash time.Duration
}

// Values taken from the FocalTech reference driver:
// https://github.com/focaltech-systems/drivers-input-touchscreen-FTS_driver
var variants = []Variant{
	{
		ChipID: FT5x06, Name: "ft5x06",
		MaxTouchPoints: 5, AutoCalibrate: true, FlashOffset: 0x0000,
		DelayAA: 50 * time.Millisecond, Delay55: 30 * time.Millisecond,
		UpgradeID:   [2]byte{0x79, 0x03},
		DelayReadID: 10 * time.Millisecond, DelayEraseFlash: 2000 * time.Millisecond,
	},
	{
		ChipID: FT5x16, Name: "ft5x16",
		MaxTouchPoints: 5, AutoCalibrate: true, FlashOffset: 0x0000,
		DelayAA: 50 * time.Millisecond, Delay55: 30 * time.Millisecond,
		UpgradeID:   [2]byte{0x79, 0x07},
		DelayReadID: 10 * time.Millisecond, DelayEraseFlash: 1500 * time.Millisecond,
	},
	{
		ChipID: FT5x26, Name: "ft5x26",
		MaxTouchPoints: 5, AutoCalibrate: false, FlashOffset: 0x1800,
		DelayAA: 4 * time.Millisecond, Delay55: 250 * time.Millisecond,
		UpgradeID:   [2]byte{0x54, 0x2c},
		DelayReadID: 10 * time.Millisecond, DelayEraseFlash: 3000 * time.Millisecond,
	},
}

// UsesHIDBridge reports whether the chip must be switched from HID to plain
// I²C framing before the bootloader accepts commands.
func (v Variant) UsesHIDBridge() bool {
	return v.ChipID == FT5x26
}

// ErasesPanelRegion reports whether the panel parameter area is erased along
// with the application.
func (v Variant) ErasesPanelRegion() bool {
	return v.ChipID != FT5x26
}

// FlashStatusPolling reports whether the vendor documents the flash status
// register as the per-packet completion signal. Program polls it for every
// variant; on the others a missed acknowledgement is caught by the ECC check.
func (v Variant) FlashStatusPolling() bool {
	return v.ChipID == FT5x26
}

// Lookup returns the variant registered for chipID.
func Lookup(chipID byte) (Variant, error) {
	for _, v := range variants {
		if v.ChipID == chipID {
			return v, nil
		}
	}
	return Variant{}, &UnsupportedChipError{ChipID: chipID}
}

// Name returns the name of the variant registered for chipID.
func Name(chipID byte) (string, error) {
	v, err := Lookup(chipID)
	if err != nil {
		return "", err
	}
	return v.Name, nil
}

// Variants returns a copy of the registry.
func Variants() []Variant {
	return append([]Variant(nil), variants...)
}
