package speech

import "time"

// Artifact is a synthesized audio file kept on local scratch storage.
type Artifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"-"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
