package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/models"
)

// systemFields is the decoded form of a local object's encoded system-fields
// blob: the remote identity and versioning metadata preserved across syncs.
// The blob is opaque to everything outside this package.
type systemFields struct {
	RecordName       string        `json:"record_name"`
	ZoneID           models.ZoneID `json:"zone_id"`
	RecordType       string        `json:"record_type"`
	ChangeTag        string        `json:"change_tag"`
	ModificationDate time.Time     `json:"modification_date"`
}

// EncodeSystemFields captures a record's identity and version into the blob
// stored on the local object.
func EncodeSystemFields(record *models.RemoteRecord) ([]byte, error) {
	sf := systemFields{
		RecordName:       record.RecordID.RecordName,
		ZoneID:           record.RecordID.ZoneID,
		RecordType:       record.RecordType,
		ChangeTag:        record.ChangeTag,
		ModificationDate: record.ModificationDate,
	}
	data, err := json.Marshal(sf)
	if err != nil {
		return nil, fmt.Errorf("encode system fields: %w", err)
	}
	return data, nil
}

func decodeSystemFields(encoded []byte) (systemFields, error) {
	var sf systemFields
	if err := json.Unmarshal(encoded, &sf); err != nil {
		return systemFields{}, fmt.Errorf("%w: %w", ErrInvalidSystemFields, err)
	}
	return sf, nil
}
