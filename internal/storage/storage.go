package storage

import (
	"context"
	"fmt"
	"time"
)

// ScrapeResult represents the outcome of a single HTTP fetch, either a
// Wikipedia page GET or a SERP API call.
type ScrapeResult struct {
	ID           string
	URL          string
	Method       string
	StatusCode   int
	Headers      map[string][]string
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "GoogleCaptcha", "Gateway"
	CreatedAt    time.Time
	Error        string // non-empty if the fetch failed before an HTTP response
}

// MovieRecord is the structured knowledge panel data for one film. Every
// column is always present; "" means the panel did not carry that field.
type MovieRecord struct {
	Query                string `json:"query"`
	Title                string `json:"title"`
	Subtitle             string `json:"subtitle"`
	MaturityRating       string `json:"maturity_rating"`
	ReleaseYear          string `json:"release_year"`
	Genre                string `json:"genre"`
	Duration             string `json:"duration"`
	TitleLink            string `json:"title_link"`
	Description          string `json:"description"`
	IMDbLink             string `json:"IMDb_link"`
	IMDbRating           string `json:"IMDb_rating"`
	RottenTomatoesLink   string `json:"rotten_tomatoes_link"`
	RottenTomatoesRating string `json:"rotten_tomatoes_rating"`
	MetacriticLink       string `json:"meta_critic_link"`
	MetacriticRating     string `json:"meta_critic_rating"`
	IndieWireLink        string `json:"indie_wire_link"`
	IndieWireRating      string `json:"indie_wire_rating"`
	GoogleLikes          string `json:"p_google_likes"`
	BoxOffice            string `json:"box_office"`
	ReleaseDate          string `json:"release_date"`
	Directors            string `json:"directors"`
	Awards               string `json:"awards"`
	FilmSeries           string `json:"film_series"`
	Producers            string `json:"producers"`
	Budget               string `json:"budget"`
	CriticReviewsHTML    string `json:"critic_reviews_html"`
	AudienceReviewsHTML  string `json:"audience_reviews_html"`
}

// Column names as written to CSV headers and SQL tables.
const (
	ColQuery                = "query"
	ColTitle                = "title"
	ColSubtitle             = "subtitle"
	ColMaturityRating       = "maturity_rating"
	ColReleaseYear          = "release_year"
	ColGenre                = "genre"
	ColDuration             = "duration"
	ColTitleLink            = "title_link"
	ColDescription          = "description"
	ColIMDbLink             = "IMDb_link"
	ColIMDbRating           = "IMDb_rating"
	ColRottenTomatoesLink   = "rotten_tomatoes_link"
	ColRottenTomatoesRating = "rotten_tomatoes_rating"
	ColMetacriticLink       = "meta_critic_link"
	ColMetacriticRating     = "meta_critic_rating"
	ColIndieWireLink        = "indie_wire_link"
	ColIndieWireRating      = "indie_wire_rating"
	ColGoogleLikes          = "p_google_likes"
	ColBoxOffice            = "box_office"
	ColReleaseDate          = "release_date"
	ColDirectors            = "directors"
	ColAwards               = "awards"
	ColFilmSeries           = "film_series"
	ColProducers            = "producers"
	ColBudget               = "budget"
	ColCriticReviewsHTML    = "critic_reviews_html"
	ColAudienceReviewsHTML  = "audience_reviews_html"
)

type column struct {
	name  string
	field func(*MovieRecord) *string
}

// movieColumns fixes the column order of a MovieRecord.
var movieColumns = []column{
	{ColQuery, func(r *MovieRecord) *string { return &r.Query }},
	{ColTitle, func(r *MovieRecord) *string { return &r.Title }},
	{ColSubtitle, func(r *MovieRecord) *string { return &r.Subtitle }},
	{ColMaturityRating, func(r *MovieRecord) *string { return &r.MaturityRating }},
	{ColReleaseYear, func(r *MovieRecord) *string { return &r.ReleaseYear }},
	{ColGenre, func(r *MovieRecord) *string { return &r.Genre }},
	{ColDuration, func(r *MovieRecord) *string { return &r.Duration }},
	{ColTitleLink, func(r *MovieRecord) *string { return &r.TitleLink }},
	{ColDescription, func(r *MovieRecord) *string { return &r.Description }},
	{ColIMDbLink, func(r *MovieRecord) *string { return &r.IMDbLink }},
	{ColIMDbRating, func(r *MovieRecord) *string { return &r.IMDbRating }},
	{ColRottenTomatoesLink, func(r *MovieRecord) *string { return &r.RottenTomatoesLink }},
	{ColRottenTomatoesRating, func(r *MovieRecord) *string { return &r.RottenTomatoesRating }},
	{ColMetacriticLink, func(r *MovieRecord) *string { return &r.MetacriticLink }},
	{ColMetacriticRating, func(r *MovieRecord) *string { return &r.MetacriticRating }},
	{ColIndieWireLink, func(r *MovieRecord) *string { return &r.IndieWireLink }},
	{ColIndieWireRating, func(r *MovieRecord) *string { return &r.IndieWireRating }},
	{ColGoogleLikes, func(r *MovieRecord) *string { return &r.GoogleLikes }},
	{ColBoxOffice, func(r *MovieRecord) *string { return &r.BoxOffice }},
	{ColReleaseDate, func(r *MovieRecord) *string { return &r.ReleaseDate }},
	{ColDirectors, func(r *MovieRecord) *string { return &r.Directors }},
	{ColAwards, func(r *MovieRecord) *string { return &r.Awards }},
	{ColFilmSeries, func(r *MovieRecord) *string { return &r.FilmSeries }},
	{ColProducers, func(r *MovieRecord) *string { return &r.Producers }},
	{ColBudget, func(r *MovieRecord) *string { return &r.Budget }},
	{ColCriticReviewsHTML, func(r *MovieRecord) *string { return &r.CriticReviewsHTML }},
	{ColAudienceReviewsHTML, func(r *MovieRecord) *string { return &r.AudienceReviewsHTML }},
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(movieColumns))
	for i, c := range movieColumns {
		idx[c.name] = i
	}
	return idx
}()

// Columns returns the fixed, ordered MovieRecord column names.
func Columns() []string {
	names := make([]string, len(movieColumns))
	for i, c := range movieColumns {
		names[i] = c.name
	}
	return names
}

// Columns returns the record's column names; identical for every record.
func (r *MovieRecord) Columns() []string {
	return Columns()
}

// Values returns the record's values in column order.
func (r *MovieRecord) Values() []string {
	vals := make([]string, len(movieColumns))
	for i, c := range movieColumns {
		vals[i] = *c.field(r)
	}
	return vals
}

// Get returns the value of the named column, or "" for an unknown column.
func (r *MovieRecord) Get(col string) string {
	i, ok := columnIndex[col]
	if !ok {
		return ""
	}
	return *movieColumns[i].field(r)
}

// Set assigns the named column.
func (r *MovieRecord) Set(col, value string) error {
	i, ok := columnIndex[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	*movieColumns[i].field(r) = value
	return nil
}

// HasPanel reports whether any column other than the query carries a value.
func (r *MovieRecord) HasPanel() bool {
	for _, c := range movieColumns[1:] {
		if *c.field(r) != "" {
			return true
		}
	}
	return false
}

// MovieRecordFromValues builds a record from parallel column and value
// slices. Unknown columns are ignored so older files stay readable.
func MovieRecordFromValues(cols, vals []string) (*MovieRecord, error) {
	if len(cols) != len(vals) {
		return nil, fmt.Errorf("column count %d does not match value count %d", len(cols), len(vals))
	}
	r := &MovieRecord{}
	for i, col := range cols {
		_ = r.Set(col, vals[i])
	}
	return r, nil
}

// Filter allows querying for specific MovieRecords.
type Filter struct {
	Query  string
	Title  string
	Limit  int
	Offset int
}

// Match reports whether the record passes the filter's equality checks.
func (f Filter) Match(r *MovieRecord) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.Title != "" && r.Title != f.Title {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying movie records.
type Backend interface {
	Save(ctx context.Context, record *MovieRecord) error
	Query(ctx context.Context, filter Filter) ([]*MovieRecord, error)
	Close() error
}

// Page applies offset and limit to an already filtered, ordered slice.
func Page(records []*MovieRecord, filter Filter) []*MovieRecord {
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return []*MovieRecord{}
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records
}
