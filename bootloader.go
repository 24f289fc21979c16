package ftsboot

import (
	"github.com/pkg/errors"
)

// EnterBootloader switches the chip to bootloader mode. The reset timing is
// unreliable so the whole sequence is retried up to 30 times.
//
// The chip stays in bootloader mode until ResetFirmware is called.
func (d *Device) EnterBootloader() error {
	v, err := d.Variant()
	if err != nil {
		return err
	}

	for i := 0; i < upgradeLoop; i++ {
		pkgLog.Infof("reset CTPM")
		d.resetCTPM(&v)

		pkgLog.Infof("enter upgrade mode")
		if v.UsesHIDBridge() {
			d.hidToI2C()
		}
		if err := d.write(upgrade55, upgradeAA); err != nil {
			pkgLog.Warnf("failed to enter upgrade mode: %v", err)
			continue
		}

		pkgLog.Infof("check READ-ID")
		if err := d.checkReadID(&v); err != nil {
			pkgLog.Warnf("%v", err)
			continue
		}
		return nil
	}
	return ErrBootloaderEntryFailed
}

func (d *Device) checkReadID(v *Variant) error {
	d.sleep(v.DelayReadID)
	id, err := d.read([]byte{cmdReadID, 0x00, 0x00, 0x00}, 2)
	if err != nil {
		return errors.Wrap(err, "READ-ID failed")
	}
	if id[0] != v.UpgradeID[0] || id[1] != v.UpgradeID[1] {
		return errors.Errorf("READ-ID not ok: %x %x", id[0], id[1])
	}
	return nil
}
