package archive

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"dota-pipeline/internal/domain"
)

// Marshal renders an untyped document as an XML tree rooted at root. Map keys
// become child elements in sorted order, list entries become <item> elements.
// Keys that are not valid element names are sanitized and the original key
// is kept in a key attribute.
func Marshal(root string, document any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := encodeElement(enc, root, document); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func encodeElement(enc *xml.Encoder, key string, value any) error {
	start := xml.StartElement{Name: xml.Name{Local: sanitizeName(key)}}
	if start.Name.Local != key {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "key"}, Value: key}}
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeValue(enc, value); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeValue(enc *xml.Encoder, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case domain.RawDocument:
		return encodeMap(enc, v)
	case map[string]any:
		return encodeMap(enc, v)
	case []any:
		for _, item := range v {
			if err := encodeElement(enc, "item", item); err != nil {
				return err
			}
		}
		return nil
	case []domain.RawDocument:
		for _, item := range v {
			if err := encodeElement(enc, "item", item); err != nil {
				return err
			}
		}
		return nil
	case []map[string]any:
		for _, item := range v {
			if err := encodeElement(enc, "item", item); err != nil {
				return err
			}
		}
		return nil
	default:
		text, err := scalarText(v)
		if err != nil {
			return err
		}
		return enc.EncodeToken(xml.CharData(text))
	}
}

func encodeMap(enc *xml.Encoder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := encodeElement(enc, k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func scalarText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case bool:
		return strconv.FormatBool(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(s), nil
	case int32:
		return strconv.FormatInt(int64(s), 10), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func sanitizeName(key string) string {
	if key == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	first := []rune(name)[0]
	if !unicode.IsLetter(first) && first != '_' {
		name = "_" + name
	}
	return name
}
