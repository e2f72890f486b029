package agentapi

import (
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single envelope on the wire.
const MaxFrameSize = 4 << 20

const lengthPrefixSize = 4

// WriteEnvelope writes env as one frame: a 4-byte big-endian length followed by the marshalled envelope.
// Callers sharing a writer between goroutines must serialise calls.
func WriteEnvelope(w io.Writer, env *Envelope) error {
	data, err := proto.Marshal(env)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(data) > MaxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds limit of %d bytes", len(data), MaxFrameSize)
	}
	frame := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[lengthPrefixSize:], data)
	if _, err := w.Write(frame); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// ReadEnvelope reads one frame written by WriteEnvelope. It returns io.EOF, unwrapped, if r is exhausted
// before the first byte of the frame.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	lenBuf := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.WithStack(err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit of %d bytes", length, MaxFrameSize)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.WithStack(err)
	}
	env := &Envelope{}
	if err := proto.Unmarshal(data, env); err != nil {
		return nil, errors.WithStack(err)
	}
	return env, nil
}
