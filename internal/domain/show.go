package domain

// Show is a resolved catalog entry.
type Show struct {
	ID   int64
	Name string
	URL  string
}

// Episode is an aired or scheduled episode together with the show metadata
// returned in the same catalog response. It is never persisted.
type Episode struct {
	ID           int64  `json:"id"`
	Season       int    `json:"season"`
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Summary      string `json:"summary,omitempty"` // may contain HTML
	Airdate      string `json:"airdate,omitempty"` // YYYY-MM-DD
	URL          string `json:"url,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	PremiereYear int    `json:"premiere_year,omitempty"`
}
