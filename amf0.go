// AMF0 encoding / decoding

package main

import "errors"

// AMF0 wire type tags.
const (
	amf0TagNumber    = 0x00
	amf0TagBoolean   = 0x01
	amf0TagString    = 0x02
	amf0TagObject    = 0x03
	amf0TagNull      = 0x05
	amf0TagUndefined = 0x06
	amf0TagObjectEnd = 0x09
	amf0TagDate      = 0x0B
	amf0TagLongStr   = 0x0C
)

// AMF0ItemType tags the variant held by an AMF0Item.
type AMF0ItemType int

const (
	AMF0Unknown AMF0ItemType = iota
	AMF0Number
	AMF0Boolean
	AMF0String
	AMF0LongString
	AMF0Date
	AMF0Null
	AMF0ObjectEnd
)

// AMF0Item is a tagged AMF0 scalar value. String and LongString payloads
// borrow from the decoder's input buffer and must not outlive it.
type AMF0Item struct {
	Type   AMF0ItemType
	Num    float64
	Bool   bool
	Str    []byte
	DateMs float64
	DateTZ uint16
}

// IsString reports whether the item holds either string variant.
func (it *AMF0Item) IsString() bool {
	return it.Type == AMF0String || it.Type == AMF0LongString
}

// StringValue returns the string payload, or "" if the item is not a string.
func (it *AMF0Item) StringValue() string {
	if !it.IsString() {
		return ""
	}
	return string(it.Str)
}

// AMF0Value is a single field of an anonymous AMF0 object: a bare key plus
// a fully tagged value.
type AMF0Value struct {
	Key string
	Val AMF0Item
}

var errAMF0Truncated = errors.New("amf0: truncated input")

// AMF0Decoder reads AMF0 items from a borrowed byte slice, advancing an
// internal cursor. It never copies the input; Item.Str slices alias it.
type AMF0Decoder struct {
	data []byte
	pos  int
}

// NewAMF0Decoder creates a decoder over data. data is not copied.
func NewAMF0Decoder(data []byte) *AMF0Decoder {
	return &AMF0Decoder{data: data}
}

// Remaining returns the number of unconsumed input bytes.
func (d *AMF0Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Pos returns the current read offset into the original input.
func (d *AMF0Decoder) Pos() int {
	return d.pos
}

func (d *AMF0Decoder) need(n int) error {
	if d.Remaining() < n {
		return errAMF0Truncated
	}
	return nil
}

func (d *AMF0Decoder) take(n int) []byte {
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	return s
}

// readRawString16 reads a u16-length-prefixed string (the bare key form
// used inside objects, and also used internally for the String item form).
func (d *AMF0Decoder) readRawString16() ([]byte, error) {
	if err := d.need(2); err != nil {
		return nil, err
	}
	n := int(GetUint16BE(d.take(2)))
	if err := d.need(n); err != nil {
		return nil, err
	}
	return d.take(n), nil
}

// Get decodes a single tagged AMF0 item.
func (d *AMF0Decoder) Get() (AMF0Item, error) {
	if err := d.need(1); err != nil {
		return AMF0Item{}, err
	}
	tag := d.take(1)[0]
	switch tag {
	case amf0TagNumber:
		if err := d.need(8); err != nil {
			return AMF0Item{}, err
		}
		return AMF0Item{Type: AMF0Number, Num: GetFloat64BE(d.take(8))}, nil
	case amf0TagBoolean:
		if err := d.need(1); err != nil {
			return AMF0Item{}, err
		}
		return AMF0Item{Type: AMF0Boolean, Bool: d.take(1)[0] != 0}, nil
	case amf0TagString:
		s, err := d.readRawString16()
		if err != nil {
			return AMF0Item{}, err
		}
		return AMF0Item{Type: AMF0String, Str: s}, nil
	case amf0TagLongStr:
		if err := d.need(4); err != nil {
			return AMF0Item{}, err
		}
		n := int(GetUint32BE(d.take(4)))
		if err := d.need(n); err != nil {
			return AMF0Item{}, err
		}
		return AMF0Item{Type: AMF0LongString, Str: d.take(n)}, nil
	case amf0TagNull:
		return AMF0Item{Type: AMF0Null}, nil
	case amf0TagUndefined:
		return AMF0Item{Type: AMF0Null}, nil
	case amf0TagObjectEnd:
		return AMF0Item{Type: AMF0ObjectEnd}, nil
	case amf0TagDate:
		if err := d.need(10); err != nil {
			return AMF0Item{}, err
		}
		ms := GetFloat64BE(d.take(8))
		tz := GetUint16BE(d.take(2))
		return AMF0Item{Type: AMF0Date, DateMs: ms, DateTZ: tz}, nil
	case amf0TagObject:
		// Object start: callers decoding a value stream that might contain
		// nested objects are expected to use GetObjectList, not Get, once
		// they see this. Returned as Unknown so a caller skipping unused
		// top-level values can at least detect it instead of misreading.
		return AMF0Item{Type: AMF0Unknown}, nil
	default:
		return AMF0Item{Type: AMF0Unknown}, nil
	}
}

// readObjectField reads one object field's bare key, returning ("", true)
// on the terminating empty-key/ObjectEnd sentinel.
func (d *AMF0Decoder) readObjectField() (key string, end bool, err error) {
	k, err := d.readRawString16()
	if err != nil {
		return "", false, err
	}
	if err := d.need(1); err != nil {
		return "", false, err
	}
	if len(k) == 0 && d.data[d.pos] == amf0TagObjectEnd {
		d.pos++
		return "", true, nil
	}
	return string(k), false, nil
}

// GetObjectInto decodes a tagged Object (the 0x03 tag must already have
// been consumed by the caller, via ExpectObjectTag) into a caller-supplied
// slice of AMF0Value. Only keys already present in items are captured;
// lookup is by key equality; other fields are skipped. This is the
// key-addressed capture form used by connect/publish handling.
func (d *AMF0Decoder) GetObjectInto(items []AMF0Value) error {
	for {
		key, end, err := d.readObjectField()
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		val, err := d.Get()
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].Key == key {
				items[i].Val = val
				break
			}
		}
	}
}

// GetObjectList decodes a tagged Object into a caller-owned growable list
// of every field present, in order.
func (d *AMF0Decoder) GetObjectList() ([]AMF0Value, error) {
	var out []AMF0Value
	for {
		key, end, err := d.readObjectField()
		if err != nil {
			return nil, err
		}
		if end {
			return out, nil
		}
		val, err := d.Get()
		if err != nil {
			return nil, err
		}
		out = append(out, AMF0Value{Key: key, Val: val})
	}
}

// ExpectObjectTag consumes one byte and reports whether it was the Object
// start tag (0x03); callers decoding an argument object (e.g. connect's)
// call this before GetObjectInto/GetObjectList.
func (d *AMF0Decoder) ExpectObjectTag() (bool, error) {
	if err := d.need(1); err != nil {
		return false, err
	}
	return d.take(1)[0] == amf0TagObject, nil
}

// AMF0Encoder writes tagged AMF0 items into a ByteBuffer.
type AMF0Encoder struct {
	buf *ByteBuffer
}

// NewAMF0Encoder creates an encoder writing into buf.
func NewAMF0Encoder(buf *ByteBuffer) *AMF0Encoder {
	return &AMF0Encoder{buf: buf}
}

func (e *AMF0Encoder) putByte(b byte) {
	e.buf.Reserve(1)
	w := e.buf.Writable()
	w[0] = b
	e.buf.Commit(1)
}

func (e *AMF0Encoder) putRaw(b []byte) {
	e.buf.Append(b)
}

// PutNumber encodes a Number item.
func (e *AMF0Encoder) PutNumber(v float64) {
	e.putByte(amf0TagNumber)
	b := make([]byte, 8)
	PutFloat64BE(b, v)
	e.putRaw(b)
}

// PutBool encodes a Boolean item.
func (e *AMF0Encoder) PutBool(v bool) {
	e.putByte(amf0TagBoolean)
	if v {
		e.putByte(1)
	} else {
		e.putByte(0)
	}
}

// putRawString16 writes a bare u16-length-prefixed string (no type tag).
func (e *AMF0Encoder) putRawString16(s string) {
	b := make([]byte, 2)
	PutUint16BE(b, uint16(len(s)))
	e.putRaw(b)
	e.putRaw([]byte(s))
}

// PutString encodes a String item, escalating to LongString when the
// payload is 65536 bytes or larger.
func (e *AMF0Encoder) PutString(s string) {
	if len(s) >= 65536 {
		e.putByte(amf0TagLongStr)
		b := make([]byte, 4)
		PutUint32BE(b, uint32(len(s)))
		e.putRaw(b)
		e.putRaw([]byte(s))
		return
	}
	e.putByte(amf0TagString)
	e.putRawString16(s)
}

// PutNull encodes a Null item.
func (e *AMF0Encoder) PutNull() {
	e.putByte(amf0TagNull)
}

// PutDate encodes a Date item.
func (e *AMF0Encoder) PutDate(ms float64, tz uint16) {
	e.putByte(amf0TagDate)
	b := make([]byte, 8)
	PutFloat64BE(b, ms)
	e.putRaw(b)
	tzb := make([]byte, 2)
	PutUint16BE(tzb, tz)
	e.putRaw(tzb)
}

// PutObjectBegin starts an anonymous Object.
func (e *AMF0Encoder) PutObjectBegin() {
	e.putByte(amf0TagObject)
}

// PutObjectValueString writes one object field whose value is a string.
func (e *AMF0Encoder) PutObjectValueString(key string, v string) {
	e.putRawString16(key)
	e.PutString(v)
}

// PutObjectValueNumber writes one object field whose value is a number.
func (e *AMF0Encoder) PutObjectValueNumber(key string, v float64) {
	e.putRawString16(key)
	e.PutNumber(v)
}

// PutObjectValueBool writes one object field whose value is a boolean.
func (e *AMF0Encoder) PutObjectValueBool(key string, v bool) {
	e.putRawString16(key)
	e.PutBool(v)
}

// PutObjectEnd terminates an Object with the empty-key/ObjectEnd sentinel.
func (e *AMF0Encoder) PutObjectEnd() {
	e.putRawString16("")
	e.putByte(amf0TagObjectEnd)
}
