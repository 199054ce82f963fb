package store

// SystemSetting is a name/value row for store-level bookkeeping.
type SystemSetting struct {
	Name        string
	Value       string
	Description string
}

// SystemSettingSchemaVersion holds the schema version the database was migrated to.
const SystemSettingSchemaVersion = "schema_version"
