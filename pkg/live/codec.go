package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/recera/cardboard/pkg/gesture"
)

// Encoder writes live protocol fields
type Encoder struct {
	w   io.Writer
	tmp [binary.MaxVarintLen64]byte
}

// NewEncoder creates a new encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteUvarint writes an unsigned varint
func (e *Encoder) WriteUvarint(v uint64) error {
	n := binary.PutUvarint(e.tmp[:], v)
	_, err := e.w.Write(e.tmp[:n])
	return err
}

// WriteFloat writes a float64 as the uvarint of its bits
func (e *Encoder) WriteFloat(f float64) error {
	return e.WriteUvarint(math.Float64bits(f))
}

// WriteString writes a length-prefixed string
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// WriteBytes writes raw bytes
func (e *Encoder) WriteBytes(b ...byte) error {
	_, err := e.w.Write(b)
	return err
}

// Decoder reads live protocol fields. Running out of input is reported as
// ErrShortFrame.
type Decoder struct {
	r *bytes.Reader
}

// NewDecoder creates a decoder over one frame's bytes
func NewDecoder(data []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(data)}
}

// ReadUvarint reads an unsigned varint
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(d.r)
	return v, short(err)
}

// ReadFloat reads a float64 written by WriteFloat
func (d *Decoder) ReadFloat() (float64, error) {
	v, err := d.ReadUvarint()
	return math.Float64frombits(v), err
}

// ReadByte reads one byte
func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.r.ReadByte()
	return b, short(err)
}

// ReadString reads a length-prefixed string
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if length > uint64(d.r.Len()) {
		return "", ErrShortFrame
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", short(err)
	}
	return string(buf), nil
}

func short(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortFrame
	}
	return err
}

// EncodeSample encodes a pointer sample frame. Time travels as Unix
// milliseconds.
func EncodeSample(s gesture.Sample) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteBytes(byte(FrameSample))
	enc.WriteUvarint(uint64(s.Pointer))
	enc.WriteBytes(byte(s.Phase))
	enc.WriteFloat(s.X)
	enc.WriteFloat(s.Y)
	enc.WriteUvarint(uint64(s.Time.UnixMilli()))
	return buf.Bytes()
}

// DecodeSample decodes a pointer sample frame
func DecodeSample(data []byte) (gesture.Sample, error) {
	var s gesture.Sample
	d := NewDecoder(data)
	t, err := d.ReadByte()
	if err != nil {
		return s, err
	}
	if MessageType(t) != FrameSample {
		return s, fmt.Errorf("live: not a sample frame: 0x%02x", t)
	}

	pointer, err := d.ReadUvarint()
	if err != nil {
		return s, err
	}
	phase, err := d.ReadByte()
	if err != nil {
		return s, err
	}
	if gesture.Phase(phase) > gesture.PhaseCancel {
		return s, fmt.Errorf("live: unknown pointer phase %d", phase)
	}
	if s.X, err = d.ReadFloat(); err != nil {
		return s, err
	}
	if s.Y, err = d.ReadFloat(); err != nil {
		return s, err
	}
	at, err := d.ReadUvarint()
	if err != nil {
		return s, err
	}

	s.Pointer = int(pointer)
	s.Phase = gesture.Phase(phase)
	s.Time = time.UnixMilli(int64(at))
	return s, nil
}

// EncodeControl encodes a control frame
func EncodeControl(cmd string) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteBytes(byte(FrameControl))
	enc.WriteString(cmd)
	return buf.Bytes()
}

// DecodeControl decodes a control frame
func DecodeControl(data []byte) (Command, error) {
	d := NewDecoder(data)
	t, err := d.ReadByte()
	if err != nil {
		return Command{}, err
	}
	if MessageType(t) != FrameControl {
		return Command{}, fmt.Errorf("live: not a control frame: 0x%02x", t)
	}
	s, err := d.ReadString()
	if err != nil {
		return Command{}, err
	}
	return ParseCommand(s), nil
}
