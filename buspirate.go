package ftsboot

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Bus Pirate binary mode commands.
const (
	bpReset       = 0x00
	bpEnterI2C    = 0x02
	bpI2CStart    = 0x02
	bpI2CStop     = 0x03
	bpI2CRead     = 0x04
	bpI2CAck      = 0x06
	bpI2CNack     = 0x07
	bpI2CWrite    = 0x10 // | count-1
	bpI2CSpeed    = 0x60 // | speed index
	bpAnswerOK    = 0x01
	bpMaxBulk     = 16
	bpEnterTries  = 20
	bpReadTimeout = 100 * time.Millisecond
)

// BusPirate is an i2c.Bus driving a Bus Pirate in binary I²C mode over a
// serial port.
type BusPirate struct {
	mu   sync.Mutex
	name string
	port io.ReadWriteCloser
}

var _ i2c.BusCloser = (*BusPirate)(nil)

// OpenBusPirate opens the serial port and switches the Bus Pirate to I²C mode
// at 100kHz.
func OpenBusPirate(port string, baud int) (*BusPirate, error) {
	cfg := serial.Config{Name: port, Baud: baud, ReadTimeout: bpReadTimeout}
	p, err := serial.OpenPort(&cfg)
	if err != nil {
		return nil, err
	}
	// Drop whatever the terminal mode left in the buffers.
	time.Sleep(100 * time.Millisecond)
	p.Flush()

	b, err := newBusPirate(port, p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return b, nil
}

func newBusPirate(name string, port io.ReadWriteCloser) (*BusPirate, error) {
	b := &BusPirate{name: name, port: port}
	if err := b.enterBitbang(); err != nil {
		return nil, err
	}
	if err := b.write(bpEnterI2C); err != nil {
		return nil, err
	}
	mode, err := b.recv(4)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enter I2C mode")
	}
	if string(mode) != "I2C1" {
		return nil, fmt.Errorf("expected version string \"I2C1\", got %q", mode)
	}
	if err := b.SetSpeed(100 * physic.KiloHertz); err != nil {
		return nil, err
	}
	return b, nil
}

// enterBitbang sends resets until the Bus Pirate answers with its binary mode
// banner.
func (b *BusPirate) enterBitbang() error {
	var seen []byte
	buf := make([]byte, 16)
	for i := 0; i < bpEnterTries; i++ {
		if err := b.write(bpReset); err != nil {
			return err
		}
		n, err := b.port.Read(buf)
		seen = append(seen, buf[:n]...)
		if bytes.Contains(seen, []byte("BBIO1")) {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
	}
	return errors.New("bus pirate did not enter binary mode")
}

func (b *BusPirate) String() string {
	return "buspirate(" + b.name + ")"
}

// Close resets the Bus Pirate to terminal mode and closes the port.
func (b *BusPirate) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(bpReset, 0x0f)
	return b.port.Close()
}

// SetSpeed implements i2c.Bus. The Bus Pirate only knows four speeds; the
// fastest one not above f is used.
func (b *BusPirate) SetSpeed(f physic.Frequency) error {
	var idx byte
	switch {
	case f >= 400*physic.KiloHertz:
		idx = 3
	case f >= 100*physic.KiloHertz:
		idx = 2
	case f >= 50*physic.KiloHertz:
		idx = 1
	case f >= 5*physic.KiloHertz:
		idx = 0
	default:
		return fmt.Errorf("buspirate: invalid speed %s; minimum supported clock is 5kHz", f)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.command(bpI2CSpeed | idx)
}

// Tx implements i2c.Bus. A write followed by a read uses a repeated start.
func (b *BusPirate) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("buspirate: invalid address %#x", addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.tx(byte(addr), w, r)
	if serr := b.command(bpI2CStop); err == nil {
		err = serr
	}
	return err
}

func (b *BusPirate) tx(addr byte, w, r []byte) error {
	if len(w) != 0 || len(r) == 0 {
		if err := b.command(bpI2CStart); err != nil {
			return err
		}
		if err := b.bulkWrite(append([]byte{addr << 1}, w...)); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	if err := b.command(bpI2CStart); err != nil {
		return err
	}
	if err := b.bulkWrite([]byte{addr<<1 | 1}); err != nil {
		return err
	}
	for i := range r {
		v, err := b.exchange(bpI2CRead)
		if err != nil {
			return err
		}
		r[i] = v
		ack := byte(bpI2CAck)
		if i == len(r)-1 {
			ack = bpI2CNack
		}
		if err := b.command(ack); err != nil {
			return err
		}
	}
	return nil
}

func (b *BusPirate) bulkWrite(data []byte) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > bpMaxBulk {
			chunk = chunk[:bpMaxBulk]
		}
		if err := b.command(bpI2CWrite | byte(len(chunk)-1)); err != nil {
			return err
		}
		// The whole chunk has to be sent even after a NACK.
		nack := -1
		for i, v := range chunk {
			ack, err := b.exchange(v)
			if err != nil {
				return err
			}
			if ack != 0 && nack < 0 {
				nack = i
			}
		}
		if nack >= 0 {
			return errors.Errorf("buspirate: NACK writing %#02x", chunk[nack])
		}
		data = data[len(chunk):]
	}
	return nil
}

// command sends a single byte command and expects the OK answer.
func (b *BusPirate) command(cmd byte) error {
	v, err := b.exchange(cmd)
	if err != nil {
		return err
	}
	if v != bpAnswerOK {
		return errors.Errorf("buspirate: command %#02x returned %#02x", cmd, v)
	}
	return nil
}

func (b *BusPirate) exchange(v byte) (byte, error) {
	if err := b.write(v); err != nil {
		return 0, err
	}
	resp, err := b.recv(1)
	if err != nil {
		return 0, err
	}
	return resp[0], nil
}

func (b *BusPirate) write(data ...byte) error {
	_, err := b.port.Write(data)
	return err
}

func (b *BusPirate) recv(count int) ([]byte, error) {
	resp := make([]byte, count)
	if _, err := io.ReadFull(b.port, resp); err != nil {
		return nil, errors.Wrap(err, "buspirate: no answer")
	}
	return resp, nil
}
