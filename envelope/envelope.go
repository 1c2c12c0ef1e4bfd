package envelope

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Magic prefixes every envelope.
const Magic = "ENCWEBP"

// Envelope is the decoded binary container:
//
//	MAGIC(7) || keylen(2, big endian) || wrapped key || noncelen(1) || nonce || taglen(1) || tag || ciphertext
type Envelope struct {
	WrappedKey []byte
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

func (e *Envelope) MarshalBinary() ([]byte, error) {
	if len(e.WrappedKey) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes", ErrEncoding, len(e.WrappedKey))
	}
	if len(e.Nonce) > math.MaxUint8 || len(e.Tag) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: nonce or tag longer than 255 bytes", ErrEncoding)
	}

	out := make([]byte, 0, len(Magic)+2+len(e.WrappedKey)+1+len(e.Nonce)+1+len(e.Tag)+len(e.Ciphertext))
	out = append(out, Magic...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(e.WrappedKey)))
	out = append(out, e.WrappedKey...)
	out = append(out, byte(len(e.Nonce)))
	out = append(out, e.Nonce...)
	out = append(out, byte(len(e.Tag)))
	out = append(out, e.Tag...)
	out = append(out, e.Ciphertext...)
	return out, nil
}

// ParseEnvelope splits data into its fields. Any missing or truncated field
// fails with ErrFormat.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: missing %s header", ErrFormat, Magic)
	}
	r := reader{buf: data[len(Magic):]}

	keyLen, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: key length: %v", ErrFormat, err)
	}
	env := &Envelope{}
	if env.WrappedKey, err = r.bytes(int(keyLen)); err != nil {
		return nil, fmt.Errorf("%w: wrapped key: %v", ErrFormat, err)
	}
	nonceLen, err := r.uint8()
	if err != nil {
		return nil, fmt.Errorf("%w: nonce length: %v", ErrFormat, err)
	}
	if env.Nonce, err = r.bytes(int(nonceLen)); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrFormat, err)
	}
	tagLen, err := r.uint8()
	if err != nil {
		return nil, fmt.Errorf("%w: tag length: %v", ErrFormat, err)
	}
	if env.Tag, err = r.bytes(int(tagLen)); err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrFormat, err)
	}
	if len(env.WrappedKey) == 0 || len(env.Nonce) == 0 || len(env.Tag) == 0 {
		return nil, fmt.Errorf("%w: empty key, nonce or tag", ErrFormat)
	}
	env.Ciphertext = r.buf
	return env, nil
}

type reader struct {
	buf []byte
}

func (r *reader) bytes(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, fmt.Errorf("need %d bytes, have %d", n, len(r.buf))
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}
