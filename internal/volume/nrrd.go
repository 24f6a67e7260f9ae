package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// SampleType is an NRRD voxel type.
type SampleType string

const (
	TypeFloat64 SampleType = "double"
	TypeFloat32 SampleType = "float"
	TypeInt16   SampleType = "short"
	TypeUint16  SampleType = "ushort"
	TypeInt32   SampleType = "int"
	TypeUint8   SampleType = "uchar"
	TypeInt8    SampleType = "signed char"
)

// Encoding is an NRRD data encoding.
type Encoding string

const (
	EncodingRaw  Encoding = "raw"
	EncodingGzip Encoding = "gzip"
)

var typeAliases = map[string]SampleType{
	"double": TypeFloat64, "float64": TypeFloat64,
	"float": TypeFloat32, "float32": TypeFloat32,
	"short": TypeInt16, "short int": TypeInt16, "signed short": TypeInt16,
	"signed short int": TypeInt16, "int16": TypeInt16, "int16_t": TypeInt16,
	"ushort": TypeUint16, "unsigned short": TypeUint16, "unsigned short int": TypeUint16,
	"uint16": TypeUint16, "uint16_t": TypeUint16,
	"int": TypeInt32, "signed int": TypeInt32, "int32": TypeInt32, "int32_t": TypeInt32,
	"uchar": TypeUint8, "unsigned char": TypeUint8, "uint8": TypeUint8, "uint8_t": TypeUint8,
	"signed char": TypeInt8, "int8": TypeInt8, "int8_t": TypeInt8,
}

func (t SampleType) size() int {
	switch t {
	case TypeFloat64:
		return 8
	case TypeFloat32, TypeInt32:
		return 4
	case TypeInt16, TypeUint16:
		return 2
	case TypeUint8, TypeInt8:
		return 1
	}
	return 0
}

// Header is the subset of NRRD header fields the codec understands.
type Header struct {
	Type      SampleType
	Sizes     [3]int
	Encoding  Encoding
	BigEndian bool
}

func (h Header) order() binary.ByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Read decodes a 3-D NRRD stream with an attached data section.
func Read(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	var data io.Reader = br
	if h.Encoding == EncodingGzip {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("nrrd: gzip: %w", err)
		}
		defer zr.Close()
		data = zr
	}

	v := New(h.Sizes)
	raw := make([]byte, v.Len()*h.Type.size())
	if _, err := io.ReadFull(data, raw); err != nil {
		return nil, fmt.Errorf("nrrd: data: %w", err)
	}
	decode(raw, h, v.Data)
	return v, nil
}

// ReadFile decodes the NRRD file at path.
func ReadFile(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadMaskFile decodes the NRRD file at path as a mask. Non-zero voxels are set.
func ReadMaskFile(path string) (*Mask, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return MaskFromVolume(v), nil
}

func readHeader(br *bufio.Reader) (Header, error) {
	magic, err := br.ReadString('\n')
	if err != nil {
		return Header{}, fmt.Errorf("nrrd: header: %w", err)
	}
	if !strings.HasPrefix(magic, "NRRD000") {
		return Header{}, fmt.Errorf("nrrd: bad magic %q", strings.TrimSpace(magic))
	}

	h := Header{Encoding: EncodingRaw}
	var (
		haveType, haveSizes bool
		dimension           int
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return Header{}, fmt.Errorf("nrrd: header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") || strings.Contains(line, ":=") {
			continue
		}
		field, value, ok := strings.Cut(line, ": ")
		if !ok {
			return Header{}, fmt.Errorf("nrrd: malformed header line %q", line)
		}
		value = strings.TrimSpace(value)

		switch field {
		case "type":
			t, ok := typeAliases[value]
			if !ok {
				return Header{}, fmt.Errorf("nrrd: unsupported type %q", value)
			}
			h.Type = t
			haveType = true
		case "dimension":
			dimension, err = strconv.Atoi(value)
			if err != nil {
				return Header{}, fmt.Errorf("nrrd: dimension: %w", err)
			}
		case "sizes":
			parts := strings.Fields(value)
			if len(parts) != 3 {
				return Header{}, fmt.Errorf("nrrd: need 3 sizes, got %q", value)
			}
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil || n <= 0 {
					return Header{}, fmt.Errorf("nrrd: bad size %q", p)
				}
				h.Sizes[i] = n
			}
			haveSizes = true
		case "encoding":
			switch value {
			case "raw":
				h.Encoding = EncodingRaw
			case "gzip", "gz":
				h.Encoding = EncodingGzip
			default:
				return Header{}, fmt.Errorf("nrrd: unsupported encoding %q", value)
			}
		case "endian":
			switch value {
			case "little":
				h.BigEndian = false
			case "big":
				h.BigEndian = true
			default:
				return Header{}, fmt.Errorf("nrrd: unknown endian %q", value)
			}
		case "data file", "datafile":
			return Header{}, fmt.Errorf("nrrd: detached data files are not supported")
		}
	}

	if dimension != 3 {
		return Header{}, fmt.Errorf("nrrd: dimension %d, want 3", dimension)
	}
	if !haveType || !haveSizes {
		return Header{}, fmt.Errorf("nrrd: header missing type or sizes")
	}
	return h, nil
}

func decode(raw []byte, h Header, out []float64) {
	bo := h.order()
	n := h.Type.size()
	for i := range out {
		b := raw[i*n : (i+1)*n]
		switch h.Type {
		case TypeFloat64:
			out[i] = math.Float64frombits(bo.Uint64(b))
		case TypeFloat32:
			out[i] = float64(math.Float32frombits(bo.Uint32(b)))
		case TypeInt32:
			out[i] = float64(int32(bo.Uint32(b)))
		case TypeInt16:
			out[i] = float64(int16(bo.Uint16(b)))
		case TypeUint16:
			out[i] = float64(bo.Uint16(b))
		case TypeUint8:
			out[i] = float64(b[0])
		case TypeInt8:
			out[i] = float64(int8(b[0]))
		}
	}
}

// Write encodes v as little-endian NRRD of type t.
func Write(w io.Writer, v *Volume, t SampleType, enc Encoding) error {
	if t.size() == 0 {
		return fmt.Errorf("nrrd: unsupported type %q", t)
	}
	raw := make([]byte, v.Len()*t.size())
	bo := binary.LittleEndian
	n := t.size()
	for i, x := range v.Data {
		b := raw[i*n : (i+1)*n]
		switch t {
		case TypeFloat64:
			bo.PutUint64(b, math.Float64bits(x))
		case TypeFloat32:
			bo.PutUint32(b, math.Float32bits(float32(x)))
		case TypeInt32:
			bo.PutUint32(b, uint32(int32(x)))
		case TypeInt16:
			bo.PutUint16(b, uint16(int16(x)))
		case TypeUint16:
			bo.PutUint16(b, uint16(x))
		case TypeUint8:
			b[0] = uint8(x)
		case TypeInt8:
			b[0] = uint8(int8(x))
		}
	}
	return writeRaw(w, Header{Type: t, Sizes: v.Dims, Encoding: enc}, raw)
}

// WriteMask encodes m as a uchar NRRD with 1 inside and 0 outside.
func WriteMask(w io.Writer, m *Mask, enc Encoding) error {
	return writeRaw(w, Header{Type: TypeUint8, Sizes: m.Dims, Encoding: enc}, m.Bytes())
}

func writeRaw(w io.Writer, h Header, raw []byte) error {
	var hdr bytes.Buffer
	hdr.WriteString("NRRD0004\n")
	hdr.WriteString("# Complete NRRD file format specification at:\n")
	hdr.WriteString("# http://teem.sourceforge.net/nrrd/format.html\n")
	fmt.Fprintf(&hdr, "type: %s\n", h.Type)
	hdr.WriteString("dimension: 3\n")
	fmt.Fprintf(&hdr, "sizes: %d %d %d\n", h.Sizes[0], h.Sizes[1], h.Sizes[2])
	hdr.WriteString("spacings: 1 1 1\n")
	if h.Type.size() > 1 {
		hdr.WriteString("endian: little\n")
	}
	fmt.Fprintf(&hdr, "encoding: %s\n\n", h.Encoding)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	switch h.Encoding {
	case EncodingRaw, "":
		_, err := w.Write(raw)
		return err
	case EncodingGzip:
		zw := gzip.NewWriter(w)
		if _, err := zw.Write(raw); err != nil {
			return err
		}
		return zw.Close()
	default:
		return fmt.Errorf("nrrd: unsupported encoding %q", h.Encoding)
	}
}

// WriteFile encodes v to path with gzip encoding.
func WriteFile(path string, v *Volume, t SampleType) error {
	return writeFile(path, func(w io.Writer) error { return Write(w, v, t, EncodingGzip) })
}

// WriteMaskFile encodes m to path with gzip encoding.
func WriteMaskFile(path string, m *Mask) error {
	return writeFile(path, func(w io.Writer) error { return WriteMask(w, m, EncodingGzip) })
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
