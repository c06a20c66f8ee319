package favorites

// Key is the storage key holding the serialized collection.
const Key = "favorites"

// Record is a page the user marked for quick return.
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Category  string `json:"category"`
	CreatedAt int64  `json:"createdAt"` // epoch milliseconds
}

// Sort selects the order of List results.
type Sort string

const (
	SortRecent Sort = "recent" // newest first
	SortTitle  Sort = "title"  // case-insensitive A-Z
)

// ChangeKind says what happened to the collection.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Synced  ChangeKind = "synced" // replaced by a write from another context
)

// Change is delivered to listeners after a successful mutation.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Record  *Record    `json:"record,omitempty"`
	Records []Record   `json:"records"`
	Origin  string     `json:"-"`
}
