package store

// Document is a generated practice paper persisted under its cache key.
// Rows are never updated once written.
type Document struct {
	ID        int32
	Key       string
	UID       string
	Body      []byte
	Size      int64
	CreatedTs int64
}

// DeleteDocument is the delete condition for documents.
type DeleteDocument struct {
	// Key deletes a single document when set.
	Key *string
	// CreatedBefore deletes documents created strictly before this unix timestamp.
	CreatedBefore *int64
}

// DocumentStats summarizes the persisted documents.
type DocumentStats struct {
	Count int64
	Bytes int64
}
