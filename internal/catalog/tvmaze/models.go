package tvmaze

// showResponse is the /shows/<id> body, optionally with embedded episodes.
type showResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Premiered string    `json:"premiered"`
	Image     *Image    `json:"image"`
	Embedded  *Embedded `json:"_embedded"`
}

type Image struct {
	Medium   string `json:"medium"`
	Original string `json:"original"`
}

type Embedded struct {
	PreviousEpisode *episodeResponse `json:"previousepisode"`
	NextEpisode     *episodeResponse `json:"nextepisode"`
}

// Season and number are null for specials.
type episodeResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Season  *int    `json:"season"`
	Number  *int    `json:"number"`
	Airdate string  `json:"airdate"`
	URL     string  `json:"url"`
	Summary *string `json:"summary"`
}

type searchResult struct {
	Score float64      `json:"score"`
	Show  showResponse `json:"show"`
}
