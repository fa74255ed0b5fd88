package types

import "encoding/json"

// Movie is an entry of a catalog listing. Only the fields used for
// filtering and sorting are decoded; the rest is passed through as-is.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	GenreIDs    []int   `json:"genre_ids"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`

	// Raw is the original catalog object, written back verbatim to clients.
	Raw json.RawMessage `json:"-"`
}

func (m *Movie) UnmarshalJSON(data []byte) error {
	type plain Movie
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Movie(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (m Movie) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type plain Movie
	return json.Marshal(plain(m))
}

// MoviePage is one page of a catalog listing.
type MoviePage struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
	Results      []Movie `json:"results"`
}

// Video is a catalog video entry (trailers, teasers, clips).
type Video struct {
	ISO639_1 string `json:"iso_639_1"`
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}
