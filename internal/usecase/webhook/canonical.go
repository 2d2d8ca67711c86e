package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// canonicalize перекодирует JSON компактно: порядок ключей как во входе,
// числа без изменений, строки без HTML-экранирования.
func canonicalize(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeValue(dec, &buf); err != nil {
		return "", err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("canonicalize: trailing data after payload")
	}

	return buf.String(), nil
}

func writeValue(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeObject(dec, buf)
		case '[':
			return writeArray(dec, buf)
		default:
			return fmt.Errorf("canonicalize: unexpected delimiter %q", v)
		}
	case string:
		return writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("canonicalize: unexpected token %T", tok)
	}

	return nil
}

func writeObject(dec *json.Decoder, buf *bytes.Buffer) error {
	buf.WriteByte('{')

	for first := true; dec.More(); first = false {
		if !first {
			buf.WriteByte(',')
		}

		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("canonicalize: object key is %T", tok)
		}
		if err := writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')

		if err := writeValue(dec, buf); err != nil {
			return err
		}
	}

	// '}'
	if _, err := dec.Token(); err != nil {
		return err
	}
	buf.WriteByte('}')

	return nil
}

func writeArray(dec *json.Decoder, buf *bytes.Buffer) error {
	buf.WriteByte('[')

	for first := true; dec.More(); first = false {
		if !first {
			buf.WriteByte(',')
		}
		if err := writeValue(dec, buf); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	buf.WriteByte(']')

	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer

	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}

	// Encode дописывает перевод строки
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))

	return nil
}
