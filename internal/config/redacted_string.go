package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RedactedString is a string that never shows its value when printed or serialized,
// so that configuration can be logged safely.
type RedactedString string

func (r RedactedString) String() string {
	return fmt.Sprintf("<redacted-%d-chars>", len(r))
}

func (r RedactedString) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// MarshalJSON keeps the angle brackets readable, json.Marshal would escape them
func (r RedactedString) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(r.String())
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r RedactedString) MarshalBinary() ([]byte, error) {
	return []byte(r.String()), nil
}
