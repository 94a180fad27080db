package domain

// Hasher turns client identifiers into opaque keys so raw addresses never
// sit in long-lived maps.
type Hasher interface {
	Hash(data []byte) string
}
