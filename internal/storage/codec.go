package storage

import (
	"encoding/json"

	"episkopos/internal/stats"
)

// EncodeRunRecord serializes a record for the payload column.
func EncodeRunRecord(rec stats.RunRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeRunRecord restores a record from its payload bytes.
func DecodeRunRecord(data []byte) (stats.RunRecord, error) {
	var rec stats.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return stats.RunRecord{}, err
	}
	return rec, nil
}
