package models

// ConflictRecord is produced when a push is rejected because the remote
// version changed since the client's last known version. It exists only
// within one sync cycle.
type ConflictRecord struct {
	// ServerRecord is the record currently stored remotely.
	ServerRecord *RemoteRecord `json:"server_record"`

	// ClientRecord is the record the client attempted to push.
	ClientRecord *RemoteRecord `json:"client_record"`

	// AncestorRecord is the common ancestor both edits are based on, when
	// the remote service can reconstruct it; nil otherwise.
	AncestorRecord *RemoteRecord `json:"ancestor_record,omitempty"`
}
