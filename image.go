package ftsboot

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

// Image is a firmware image loaded from disk. Raw images are memory mapped
// where the platform allows it, so Close must be called once the image is no
// longer used.
type Image struct {
	Data    []byte
	release func() error
}

// Close releases the image data.
func (im *Image) Close() error {
	if im.release == nil {
		return nil
	}
	err := im.release()
	im.release = nil
	im.Data = nil
	return err
}

// Checksum returns the CRC-32 of data. It is only used to fingerprint images
// in logs; the chip itself checks the ECC.
func Checksum(data []byte) uint32 {
	return uint32(crc.CalculateCRC(crc.CRC32, data))
}

// IsHexFile reports whether fileName is handled as Intel HEX.
func IsHexFile(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".hex" || ext == ".ihex"
}

// LoadImage loads a firmware image. Files with a .hex extension are parsed as
// Intel HEX and flattened from address 0, gaps padded with 0xFF. Anything else
// is taken as a raw binary.
func LoadImage(fileName string) (*Image, error) {
	if IsHexFile(fileName) {
		return loadHexFile(fileName)
	}

	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open image")
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat image")
	}
	pkgLog.Infof("FW length is %d", fi.Size())
	if fi.Size() < MinImageSize || fi.Size() > MaxImageSize {
		return nil, &ImageSizeError{Length: int(fi.Size())}
	}

	data, release, err := mapFile(file, int(fi.Size()))
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't map %s", fileName)
	}
	return &Image{Data: data, release: release}, nil
}

func loadHexFile(fileName string) (*Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open image")
	}
	defer file.Close()

	data, err := loadHex(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", fileName)
	}
	return &Image{Data: data}, nil
}

func loadHex(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}

	var end uint32
	for _, segment := range mem.GetDataSegments() {
		pkgLog.Debugf("loaded segment at %X length %v", segment.Address, len(segment.Data))
		if e := segment.Address + uint32(len(segment.Data)); e > end {
			end = e
		}
	}
	if end > MaxImageSize {
		return nil, &ImageSizeError{Length: int(end)}
	}
	data := mem.ToBinary(0, end, 0xFF)
	if err := ValidateImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// SaveImage writes data to fileName, as Intel HEX if the name has a .hex
// extension and as a raw binary otherwise.
func SaveImage(fileName string, data []byte) error {
	if !IsHexFile(fileName) {
		if err := ioutil.WriteFile(fileName, data, 0644); err != nil {
			return errors.Wrap(err, "unable to write image")
		}
		return nil
	}

	buf := new(bytes.Buffer)
	if err := WriteHex(buf, data); err != nil {
		return err
	}
	if err := ioutil.WriteFile(fileName, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "unable to write image")
	}
	return nil
}

// WriteHex encodes data as Intel HEX starting at address 0.
func WriteHex(w io.Writer, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(0, data); err != nil {
		return err
	}
	if err := mem.DumpIntelHex(w, 16); err != nil {
		return errors.Wrap(err, "failed to encode hex")
	}
	return nil
}
