package database

// Column is a board column. Position orders columns left-to-right;
// ties are broken by id.
type Column struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// Task belongs to exactly one column. CreatedAt is epoch milliseconds
// and drives the elapsed-time indicator on the board.
type Task struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ColumnID  int64  `json:"column_id"`
	CreatedAt int64  `json:"created_at"`
	Position  int    `json:"position"`
}

// Event is a single calendar entry. Date is ISO 8601 (YYYY-MM-DD);
// multiple events may share a date.
type Event struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CustomSound is metadata for an uploaded sound asset. Filename is the
// server-generated name on disk; OriginalName is what the admin uploaded.
type CustomSound struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// MarqueeConfig controls the admin-message banner animation.
type MarqueeConfig struct {
	Enabled bool    `json:"enabled"`
	Speed   float64 `json:"speed"`
}

// FullState is the authoritative snapshot broadcast to every client.
// It is recomputed fresh from the store on every aggregation and never
// partially patched.
type FullState struct {
	Columns      []Column      `json:"columns"`
	Tasks        []Task        `json:"tasks"`
	Events       []Event       `json:"events"`
	AdminMessage string        `json:"adminMessage"`
	Marquee      MarqueeConfig `json:"marqueeConfig"`
	CustomSounds []CustomSound `json:"customSounds"`
}
