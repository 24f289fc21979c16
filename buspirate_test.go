package ftsboot

import (
	"bytes"
	"io"
	"testing"

	"periph.io/x/conn/v3/physic"
)

// fakePirate answers Bus Pirate binary mode commands. Bytes written on the
// I²C bus are recorded in sent, reads are served from toRead.
type fakePirate struct {
	out     bytes.Buffer
	i2cMode bool
	bulk    int // data bytes still expected by a bulk write
	nackOn  int // 1-based index in sent to NACK, 0 for none
	sent    []byte
	starts  int
	stops   int
	speed   byte
	toRead  []byte
	closed  bool
}

func (p *fakePirate) Write(b []byte) (int, error) {
	for _, c := range b {
		p.handle(c)
	}
	return len(b), nil
}

func (p *fakePirate) handle(c byte) {
	if p.bulk > 0 {
		p.bulk--
		p.sent = append(p.sent, c)
		if len(p.sent) == p.nackOn {
			p.out.WriteByte(1)
		} else {
			p.out.WriteByte(0)
		}
		return
	}
	switch {
	case c == bpReset:
		p.i2cMode = false
		p.out.WriteString("BBIO1")
	case c == bpEnterI2C && !p.i2cMode:
		p.i2cMode = true
		p.out.WriteString("I2C1")
	case c == bpI2CStart:
		p.starts++
		p.out.WriteByte(bpAnswerOK)
	case c == bpI2CStop:
		p.stops++
		p.out.WriteByte(bpAnswerOK)
	case c == bpI2CRead:
		p.out.WriteByte(p.toRead[0])
		p.toRead = p.toRead[1:]
	case c == bpI2CAck || c == bpI2CNack:
		p.out.WriteByte(bpAnswerOK)
	case c&0xf0 == bpI2CWrite:
		p.bulk = int(c&0x0f) + 1
		p.out.WriteByte(bpAnswerOK)
	case c&0xfc == bpI2CSpeed:
		p.speed = c & 3
		p.out.WriteByte(bpAnswerOK)
	}
}

func (p *fakePirate) Read(b []byte) (int, error) {
	if p.out.Len() == 0 {
		return 0, io.EOF
	}
	return p.out.Read(b)
}

func (p *fakePirate) Close() error {
	p.closed = true
	return nil
}

func newTestPirate(t *testing.T) (*BusPirate, *fakePirate) {
	t.Helper()
	p := &fakePirate{}
	b, err := newBusPirate("test", p)
	if err != nil {
		t.Fatal(err)
	}
	if !p.i2cMode || p.speed != 2 {
		t.Fatalf("mode %t speed %d", p.i2cMode, p.speed)
	}
	return b, p
}

func TestBusPirateWriteRead(t *testing.T) {
	b, p := newTestPirate(t)
	p.toRead = []byte{0x79, 0x03}

	r := make([]byte, 2)
	if err := b.Tx(DefaultAddress, []byte{cmdReadID, 0, 0, 0}, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, []byte{0x79, 0x03}) {
		t.Errorf("read %x", r)
	}
	want := []byte{DefaultAddress << 1, cmdReadID, 0, 0, 0, DefaultAddress<<1 | 1}
	if !bytes.Equal(p.sent, want) {
		t.Errorf("sent %x, want %x", p.sent, want)
	}
	if p.starts != 2 || p.stops != 1 {
		t.Errorf("starts %d stops %d", p.starts, p.stops)
	}
}

func TestBusPirateLongWrite(t *testing.T) {
	b, p := newTestPirate(t)
	pkt := make([]byte, packetMetaLen+writePacketLen)
	for i := range pkt {
		pkt[i] = byte(i)
	}
	if err := b.Tx(DefaultAddress, pkt, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.sent, append([]byte{DefaultAddress << 1}, pkt...)) {
		t.Error("packet not sent in full")
	}
	if p.starts != 1 || p.stops != 1 {
		t.Errorf("starts %d stops %d", p.starts, p.stops)
	}
}

func TestBusPirateReadOnly(t *testing.T) {
	b, p := newTestPirate(t)
	p.toRead = []byte{0xeb, 0xaa, 0x08}
	r := make([]byte, 3)
	if err := b.Tx(DefaultAddress, nil, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.sent, []byte{DefaultAddress<<1 | 1}) || !bytes.Equal(r, hidToI2CReply) {
		t.Errorf("sent %x read %x", p.sent, r)
	}
}

func TestBusPirateNack(t *testing.T) {
	b, p := newTestPirate(t)
	p.nackOn = 1
	if err := b.Tx(0x39, []byte{RegChipID}, make([]byte, 1)); err == nil {
		t.Fatal("NACK not reported")
	}
	if p.stops != 1 {
		t.Errorf("stops = %d, want 1", p.stops)
	}
}

func TestBusPirateSpeed(t *testing.T) {
	b, p := newTestPirate(t)
	if err := b.SetSpeed(400 * physic.KiloHertz); err != nil || p.speed != 3 {
		t.Errorf("SetSpeed(400kHz) = %v, speed %d", err, p.speed)
	}
	if err := b.SetSpeed(60 * physic.KiloHertz); err != nil || p.speed != 1 {
		t.Errorf("SetSpeed(60kHz) = %v, speed %d", err, p.speed)
	}
	if err := b.SetSpeed(physic.KiloHertz); err == nil {
		t.Error("SetSpeed(1kHz) accepted")
	}
	if err := b.Close(); err != nil || !p.closed {
		t.Errorf("Close() = %v", err)
	}
}

func TestBusPirateDevice(t *testing.T) {
	b, p := newTestPirate(t)
	p.toRead = []byte{FT5x26, 7}
	d := New(b, DefaultAddress)
	info, err := d.Identify(-1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "ft5x26" || info.FirmwareVersion != 7 {
		t.Errorf("Identify() = %+v", info)
	}
}
