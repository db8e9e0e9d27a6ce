package codec

// HeaderLen is the size of the (kind, size) prefix every record begins with.
const HeaderLen = 8

// TerminatorKind is the reserved kind that ends a record sequence.
const TerminatorKind = 0

// Header is the common prefix of every record: a kind discriminant and the
// declared total size covering the header and its tail, excluding padding.
type Header interface {
	Kind() uint32
	Size() uint32
}

// HeaderDecoder decodes the HeaderLen-byte prefix b into a header value. b is
// always exactly HeaderLen bytes.
type HeaderDecoder[H Header] func(b []byte) H

// RawHeader is the plain {kind u32, size u32} layout.
type RawHeader struct {
	Type   uint32
	Length uint32
}

func (h RawHeader) Kind() uint32 { return h.Type }
func (h RawHeader) Size() uint32 { return h.Length }

// DecodeRawHeader is the HeaderDecoder for RawHeader.
func DecodeRawHeader(b []byte) RawHeader {
	return RawHeader{
		Type:   byteOrder.Uint32(b[0:4]),
		Length: byteOrder.Uint32(b[4:8]),
	}
}

// PutRawHeader writes a {kind u32, size u32} header into b.
func PutRawHeader(b []byte, kind, size uint32) {
	byteOrder.PutUint32(b[0:4], kind)
	byteOrder.PutUint32(b[4:8], size)
}

// ReadHeader decodes the header at off. The declared size is returned as-is
// and has not been checked against the view; tail is the offset of the first
// byte after the header.
func ReadHeader[H Header](v View, off int, dec HeaderDecoder[H]) (h H, tail int, err error) {
	if off < 0 || off > v.Len() || v.Len()-off < HeaderLen {
		remaining := v.Len() - off
		if remaining < 0 {
			remaining = 0
		}
		return h, 0, &ValidationError{Cause: ErrTruncatedHeader, Offset: off, Limit: remaining}
	}
	h = dec(v.buf[off : off+HeaderLen : off+HeaderLen])
	return h, off + HeaderLen, nil
}
