package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields writes one line per non-empty field of s to sb, without
// a trailing newline. A newline separates it from previous content.
// The `fmt` struct tag selects the rendering of byte fields: "ascii", "int"
// or "bcd" (swapped nibbles, as in ICCIDs and addresses).
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	typ := val.Type()
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		switch {
		case field.Type() == reflect.TypeOf([]bertlv.TLV{}):
			lines = append(lines, formatUnknownField(prefix, field)...)
		case isByteSlice(field):
			if field.Len() > 0 {
				lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, fieldName(fieldType),
					formatByteValue(field.Bytes(), fieldType.Tag.Get("fmt"))))
			}
		case isUint(field) && fieldType.IsExported():
			lines = append(lines, fmt.Sprintf("    - %s.%s: %d", prefix, fieldName(fieldType), field.Uint()))
		}
	}

	if len(lines) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
}

func fieldName(f reflect.StructField) string {
	if ft, ok := parseFieldTag(f); ok && ft.tag != "" {
		return fmt.Sprintf("%s (%s)", f.Name, ft.tag)
	}
	return f.Name
}

func formatUnknownField(prefix string, field reflect.Value) []string {
	if field.IsNil() || field.Len() == 0 {
		return nil
	}

	var lines []string
	for _, t := range field.Interface().([]bertlv.TLV) {
		lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, t.Tag, getPacketRawData(t)))
	}
	return lines
}

func formatByteValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var integer int
		for _, b := range data {
			integer = (integer << 8) | int(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, integer)
	case "bcd":
		return fmt.Sprintf("%X (%s)", data, SwappedBCD(data))
	default:
		return strings.ToUpper(hex.EncodeToString(data))
	}
}
