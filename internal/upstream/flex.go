package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

var nullLiteral = []byte("null")

// FlexInt64 decodes integers sent either as JSON numbers or numeric strings.
// Values that are not numeric decode as absent so one bad field never fails
// the page it arrived on.
type FlexInt64 struct {
	Value int64
	Valid bool
}

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	*f = FlexInt64{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*f = FlexInt64{Value: v, Valid: true}
		return nil
	}
	fv, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	*f = FlexInt64{Value: int64(fv), Valid: true}
	return nil
}

// FlexFloat decodes nullable numbers sent either as JSON numbers or numeric strings.
// Unparseable strings decode as absent rather than failing the whole payload.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}

// Ptr returns the value as a pointer, nil when absent.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
