package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Magic bytes for binary images: "STBC" (STencil ByteCode)
var Magic = []byte{'S', 'T', 'B', 'C'}

// headerSize is the magic plus a big-endian uint16 format version.
const headerSize = 6

// ErrBadMagic is returned by Unmarshal for data without the STBC header.
var ErrBadMagic = errors.New("invalid image magic")

// cborEncMode uses canonical mode so the same image always encodes to the
// same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes img to the binary image format.
//
// Format:
//
//	[magic:4 "STBC"] [version:2] [image:CBOR]
func Marshal(img *Image) ([]byte, error) {
	body, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal image: %w", err)
	}
	buf := make([]byte, 0, headerSize+len(body))
	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(img.Version))
	return append(buf, body...), nil
}

// Unmarshal deserializes a binary image.
func Unmarshal(data []byte) (*Image, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrBadMagic, headerSize, len(data))
	}
	if string(data[:4]) != string(Magic) {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrBadMagic, Magic, data[:4])
	}
	version := int(binary.BigEndian.Uint16(data[4:headerSize]))
	if version > FormatVersion {
		return nil, fmt.Errorf("bytecode: image version %d is newer than supported version %d", version, FormatVersion)
	}

	var img Image
	if err := cbor.Unmarshal(data[headerSize:], &img); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w", err)
	}
	if img.Version != version {
		return nil, fmt.Errorf("bytecode: header version %d does not match image version %d", version, img.Version)
	}
	for i := range img.Constants {
		img.Constants[i].Value = normalize(img.Constants[i].Value)
	}
	return &img, nil
}

// normalize rewrites CBOR maps decoded into interface values so that
// string-keyed maps come back as map[string]any, the shape TOML produces
// and property lookup expects.
func normalize(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
