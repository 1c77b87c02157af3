package store

// Storage key layout. ClearAll removes exactly the clearAllKeys set;
// the client instance id survives sign-out so the installation keeps a
// stable identity across sessions.
const (
	keyAuthToken        = "iotux_auth_token"
	keyUserData         = "iotux_user_data"
	keyCachedSnapshot   = "iotux_cached_snapshot"
	keyProfileOverrides = "iotux_profile_overrides"
	keyClientID         = "iotux_client_id"
)

var clearAllKeys = []string{
	keyAuthToken,
	keyUserData,
	keyCachedSnapshot,
	keyProfileOverrides,
}

// Record is one persisted key-value entry. Values are serialized JSON
// or plain strings written as a whole, never partially updated, which
// is what makes a snapshot overwrite atomic from the caller's side.
type Record struct {
	Key              string `gorm:"column:key;primaryKey;size:190;not null"`
	Value            string `gorm:"column:value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "client_records"
}

// RecordInfo is a redacted view of one stored record for debugging.
type RecordInfo struct {
	Key       string `json:"key"`
	Preview   string `json:"preview"`
	UpdatedAt int64  `json:"updated_at_s"`
}
