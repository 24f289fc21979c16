package main

import (
	"bytes"
	"io"
	"os"

	"github.com/amrbekhit/ftsboot"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const progressStep = 16 * 1024

func logProgress(op string, offset, length, total int) {
	done := offset + length
	if done%progressStep == 0 || done == total {
		log.Infof("%s %d/%d bytes", op, done, total)
	}
}

func processIdentify(dev *ftsboot.Device, forceID int) (ftsboot.Info, error) {
	info, err := dev.Identify(forceID)
	if err != nil {
		return info, errors.Wrap(err, "failed to identify chip")
	}
	return info, nil
}

// processDump creates the output file before entering the bootloader, so a
// bad path fails without touching the chip.
func processDump(dev *ftsboot.Device, fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "unable to open output")
	}
	defer f.Close()

	buf := new(bytes.Buffer)
	buf.Grow(ftsboot.MaxImageSize)
	hex := ftsboot.IsHexFile(fileName)
	var w io.Writer = buf
	if !hex {
		w = io.MultiWriter(f, buf)
	}
	if err := dev.Dump(w); err != nil {
		return errors.Wrap(err, "failed to read FW")
	}
	if hex {
		if err := ftsboot.WriteHex(f, buf.Bytes()); err != nil {
			return err
		}
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "unable to write output")
	}
	log.Infof("saved FW to %s (crc32 %08x)", fileName, ftsboot.Checksum(buf.Bytes()))
	return nil
}

func processFlash(dev *ftsboot.Device, fileName string) error {
	im, err := ftsboot.LoadImage(fileName)
	if err != nil {
		return err
	}
	defer im.Close()

	log.Infof("flashing %s (%d bytes, crc32 %08x, ecc %02x)",
		fileName, len(im.Data), ftsboot.Checksum(im.Data), ftsboot.ECC(im.Data))
	if err := dev.Flash(im.Data); err != nil {
		return errors.Wrap(err, "failed to flash FW")
	}
	log.Infof("complete")
	return nil
}
