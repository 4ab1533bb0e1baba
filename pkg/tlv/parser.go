// Package tlv maps BER-TLV and COMPREHENSION-TLV data (ISO/IEC 8825-1,
// ETSI TS 101 220) to and from Go structures using struct tags.
//
// A field is bound with `tlv:"<tag>[,option]"`:
//   - ",ctlv": the tag is a COMPREHENSION-TLV tag, matched with or without
//     its comprehension required flag (bit 8).
//   - ",unknown" (or a field named Unknown of type []bertlv.TLV): receives
//     the objects no other field consumed.
//
// Supported field kinds are []byte, string (hex), unsigned integers
// (big-endian), nested structs and slices of those for repeated tags.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// comprehensionRequired is the CR flag of a one-byte COMPREHENSION-TLV tag.
const comprehensionRequired = 0x80

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

type fieldTag struct {
	tag     string
	ctlv    bool
	unknown bool
}

func parseFieldTag(f reflect.StructField) (fieldTag, bool) {
	cfg, ok := f.Tag.Lookup("tlv")
	if !ok && f.Name != "Unknown" {
		return fieldTag{}, false
	}
	parts := strings.Split(cfg, ",")
	ft := fieldTag{tag: strings.ToUpper(parts[0]), unknown: f.Name == "Unknown"}
	for _, opt := range parts[1:] {
		switch opt {
		case "ctlv":
			ft.ctlv = true
		case "unknown":
			ft.unknown = true
		}
	}
	return ft, true
}

func (ft fieldTag) matches(tag string) bool {
	tag = strings.ToUpper(tag)
	if tag == ft.tag {
		return true
	}
	if !ft.ctlv || len(tag) != 2 || len(ft.tag) != 2 {
		return false
	}
	a, errA := hex.DecodeString(tag)
	b, errB := hex.DecodeString(ft.tag)
	if errA != nil || errB != nil {
		return false
	}
	return a[0]&^comprehensionRequired == b[0]&^comprehensionRequired
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps a slice of pre-decoded bertlv.TLV objects to a target struct.
// It supports multiple occurrences of the same tag if the target field is a slice.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	consumed := make(map[int]bool)
	var unknown reflect.Value

	for i := 0; i < v.NumField(); i++ {
		ft, ok := parseFieldTag(t.Field(i))
		if !ok {
			continue
		}
		if ft.unknown {
			unknown = v.Field(i)
			continue
		}
		if ft.tag == "" {
			continue
		}

		for idx, packet := range packets {
			if consumed[idx] || !ft.matches(packet.Tag) {
				continue
			}
			if err := mapPacketToField(packet, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s: %w", packet.Tag, err)
			}
			consumed[idx] = true
		}
	}

	if !unknown.IsValid() || !unknown.CanSet() {
		return nil
	}
	var leftovers []bertlv.TLV
	for idx, packet := range packets {
		if !consumed[idx] {
			leftovers = append(leftovers, packet)
		}
	}
	if len(leftovers) > 0 {
		unknown.Set(reflect.ValueOf(leftovers))
	}
	return nil
}

// mapPacketToField dispatches the TLV data to the appropriate reflection logic.
func mapPacketToField(packet bertlv.TLV, field reflect.Value) error {
	// A slice other than []byte collects repeated tags.
	if field.Kind() == reflect.Slice && !isByteSlice(field) {
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeToValue(packet, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil
	}
	return decodeToValue(packet, field)
}

func decodeToValue(packet bertlv.TLV, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(getPacketRawData(packet))
		}
	}

	switch {
	case isByteSlice(field):
		field.SetBytes(getPacketRawData(packet))
	case field.Kind() == reflect.String:
		field.SetString(hex.EncodeToString(getPacketRawData(packet)))
	case isUint(field):
		raw := getPacketRawData(packet)
		if len(raw) > int(field.Type().Size()) {
			return fmt.Errorf("%d bytes overflow %s", len(raw), field.Type())
		}
		var n uint64
		for _, b := range raw {
			n = n<<8 | uint64(b)
		}
		field.SetUint(n)
	case isStructOrPtrToStruct(field):
		target := getTargetField(field)
		if len(packet.TLVs) > 0 {
			return UnmarshalFromPackets(packet.TLVs, target.Interface())
		}
		return Unmarshal(packet.Value, target.Interface())
	}
	return nil
}

// Marshal encodes the tagged fields of a struct, in field order. Empty
// fields are omitted and nested structs become the value of their tag.
func Marshal(source interface{}) ([]byte, error) {
	v := reflect.ValueOf(source)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("source must not be nil")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %s", v.Kind())
	}
	t := v.Type()

	var packets []bertlv.TLV
	var leftovers []bertlv.TLV
	for i := 0; i < v.NumField(); i++ {
		ft, ok := parseFieldTag(t.Field(i))
		if !ok {
			continue
		}
		field := v.Field(i)
		if ft.unknown {
			if l, ok := field.Interface().([]bertlv.TLV); ok {
				leftovers = l
			}
			continue
		}
		if ft.tag == "" {
			continue
		}

		values, err := encodeField(field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", t.Field(i).Name, err)
		}
		for _, value := range values {
			packets = append(packets, bertlv.TLV{Tag: ft.tag, Value: value})
		}
	}
	return bertlv.Encode(append(packets, leftovers...))
}

func encodeField(field reflect.Value) ([][]byte, error) {
	switch {
	case isByteSlice(field):
		if field.Len() == 0 {
			return nil, nil
		}
		return [][]byte{field.Bytes()}, nil
	case field.Kind() == reflect.Slice:
		var values [][]byte
		for i := 0; i < field.Len(); i++ {
			v, err := encodeField(field.Index(i))
			if err != nil {
				return nil, err
			}
			values = append(values, v...)
		}
		return values, nil
	case field.Kind() == reflect.String:
		if field.Len() == 0 {
			return nil, nil
		}
		b, err := hex.DecodeString(field.String())
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	case isUint(field):
		size := int(field.Type().Size())
		n := field.Uint()
		b := make([]byte, size)
		for i := size - 1; i >= 0; i-- {
			b[i] = byte(n)
			n >>= 8
		}
		return [][]byte{b}, nil
	case isStructOrPtrToStruct(field):
		if field.Kind() == reflect.Ptr && field.IsNil() {
			return nil, nil
		}
		b, err := Marshal(field.Interface())
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", field.Kind())
}

func getPacketRawData(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

// GetValue scans the raw data for a specific tag and returns its raw payload.
func GetValue(data []byte, tag uint) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, err
	}

	targetTag := fmt.Sprintf("%02X", tag)
	for _, p := range packets {
		if strings.ToUpper(p.Tag) == targetTag {
			return getPacketRawData(p), nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", targetTag)
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isStructOrPtrToStruct(v reflect.Value) bool {
	if v.Kind() == reflect.Struct {
		return true
	}
	return v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct
}

func getTargetField(field reflect.Value) reflect.Value {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return field
	}
	return field.Addr()
}
