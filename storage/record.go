package storage

import (
	"encoding/json"
	"fmt"
)

// SchemeJSON marks a record whose Data is a JSON document.
const SchemeJSON = "json"

// Record is a single stored payload together with its CAS version.
type Record struct {
	Ver     int    `json:"ver"`
	Scheme  string `json:"scheme"`
	Data    []byte `json:"data"`
	Version uint64 `json:"version,omitempty"`
}

// MarshalRecord encodes v as a JSON record carrying the given CAS version.
func MarshalRecord(v any, version uint64) (*Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return &Record{
		Ver:     1,
		Scheme:  SchemeJSON,
		Data:    data,
		Version: version,
	}, nil
}

// UnmarshalRecord decodes a JSON record into v.
func UnmarshalRecord(rec *Record, v any) error {
	if rec.Ver != 1 {
		return fmt.Errorf("unsupported record version: %d", rec.Ver)
	}
	if rec.Scheme != SchemeJSON {
		return fmt.Errorf("unsupported record scheme: %s", rec.Scheme)
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}
