package domain

import "fmt"

// ItemKind distinguishes the two catalog item variants.
type ItemKind string

const (
	// ItemKindMovie is a feature film.
	ItemKindMovie ItemKind = "movie"
	// ItemKindSeries is a TV show.
	ItemKindSeries ItemKind = "series"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindMovie, ItemKindSeries:
		return true
	default:
		return false
	}
}

// Item is a catalog entry referenced by watchlists and chatrooms. The ID is
// the external catalog identifier, globally unique and shared across users.
//
// Item is a tagged variant: Kind selects which of the variant payloads
// (Movie, Show) is populated. Exactly one must be set.
type Item struct {
	ID       string   `json:"id"`
	Kind     ItemKind `json:"kind"`
	Title    string   `json:"title"`
	Year     string   `json:"year"`
	Rated    string   `json:"rated"`
	Released string   `json:"released"`
	Runtime  string   `json:"runtime"`
	Genre    string   `json:"genre"`
	Director string   `json:"director"`
	Writer   string   `json:"writer"`
	Actors   string   `json:"actors"`
	Plot     string   `json:"plot"`
	Awards   string   `json:"awards"`
	Poster   string   `json:"poster"`
	Rating   string   `json:"rating"`

	Movie *MovieInfo `json:"movie,omitempty"`
	Show  *ShowInfo  `json:"show,omitempty"`
}

// MovieInfo carries the movie-only fields.
type MovieInfo struct {
	BoxOffice  string `json:"box_office"`
	Production string `json:"production"`
}

// ShowInfo carries the series-only fields.
type ShowInfo struct {
	TotalSeasons string `json:"total_seasons"`
}

// Validate checks that the Kind tag and the variant payload agree.
func (i *Item) Validate() error {
	switch i.Kind {
	case ItemKindMovie:
		if i.Movie == nil || i.Show != nil {
			return fmt.Errorf("item %s: movie kind requires movie payload only", i.ID)
		}
	case ItemKindSeries:
		if i.Show == nil || i.Movie != nil {
			return fmt.Errorf("item %s: series kind requires show payload only", i.ID)
		}
	default:
		return fmt.Errorf("item %s: unknown kind %q", i.ID, i.Kind)
	}
	return nil
}

// Attribute is a display name/value pair.
type Attribute struct {
	Name  string
	Value string
}

// Attributes returns the displayable metadata for the item, including the
// variant-specific fields.
func (i *Item) Attributes() []Attribute {
	attrs := []Attribute{
		{"Year", i.Year},
		{"Rated", i.Rated},
		{"Released", i.Released},
		{"Runtime", i.Runtime},
		{"Genre", i.Genre},
		{"Director", i.Director},
		{"Writer", i.Writer},
		{"Actors", i.Actors},
		{"Awards", i.Awards},
		{"Rating", i.Rating},
	}

	switch i.Kind {
	case ItemKindMovie:
		if i.Movie != nil {
			attrs = append(attrs,
				Attribute{"Box Office", i.Movie.BoxOffice},
				Attribute{"Production", i.Movie.Production},
			)
		}
	case ItemKindSeries:
		if i.Show != nil {
			attrs = append(attrs, Attribute{"Total Seasons", i.Show.TotalSeasons})
		}
	}

	return attrs
}
