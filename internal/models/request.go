package models

// Request asks for the contents of a bucket.
// ForChat selects the gallery payload instead of a flat list of names.
type Request struct {
	Bucket  string `json:"bucket"`
	ForChat bool   `json:"forChat,omitempty"`
}
