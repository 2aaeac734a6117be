package knowledgepanel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FranksOps/reel/internal/storage"
)

var (
	errNoValue   = errors.New("node has no value")
	errNoElement = errors.New("expected element missing")
)

// SubtitleSeparator splits "PG-13 ‧ 2020 ‧ Action ‧ 2h 30m".
const SubtitleSeparator = "‧"

// values maps record columns to the text a rule extracted.
type values map[string]string

// rule extracts one or more columns from the node tagged with attrid.
// When the node is missing or extract fails, the columns stay "".
type rule struct {
	attrid  string
	columns []string
	extract func(n Node) (values, error)
}

// cleanup post-processes raw node text.
type cleanup func(string) (string, error)

// reviewSources are the critic sites listed in the reviews block. Each
// anchor is claimed by the first source whose name appears in its text.
var reviewSources = []struct {
	name   string
	link   string
	rating string
}{
	{"IMDb", storage.ColIMDbLink, storage.ColIMDbRating},
	{"Rotten Tomatoes", storage.ColRottenTomatoesLink, storage.ColRottenTomatoesRating},
	{"IndieWire", storage.ColIndieWireLink, storage.ColIndieWireRating},
	{"Metacritic", storage.ColMetacriticLink, storage.ColMetacriticRating},
}

func defaultRules() []rule {
	return []rule{
		textRule(storage.ColTitle, "title"),
		subtitleRule(),
		attrRule(storage.ColTitleLink, "title_link", "href"),
		descriptionRule(),
		reviewsRule(),
		textRule(storage.ColGoogleLikes, "kc:/ugc:thumbs_up", firstWord),
		textRule(storage.ColBoxOffice, "hw:/collection/films:box office", stripLabel("Box office:")),
		textRule(storage.ColReleaseDate, "kc:/film/film:theatrical region aware release date", stripLabel("Release date:")),
		textRule(storage.ColDirectors, "kc:/film/film:director", stripLabel("Directors:", "Director:")),
		textRule(storage.ColBudget, "kc:/film/film:budget", stripLabel("Budget:")),
		textRule(storage.ColAwards, "kc:/award/award_winner:awards", stripLabel("Awards:"), removeMore),
		textRule(storage.ColFilmSeries, "kc:/film/film:film series", stripLabel("Film series:")),
		textRule(storage.ColProducers, "kc:/film/film:producer", stripLabel("Producers:", "Producer:")),
		htmlRule(storage.ColCriticReviewsHTML, "kc:/film/film:critic_reviews"),
		htmlRule(storage.ColAudienceReviewsHTML, "kc:/ugc:user_reviews"),
	}
}

// textRule takes the node's visible text through each cleanup in order.
func textRule(col, attrid string, cleanups ...cleanup) rule {
	return rule{
		attrid:  attrid,
		columns: []string{col},
		extract: func(n Node) (values, error) {
			v := strings.TrimSpace(n.Text())
			for _, c := range cleanups {
				var err error
				if v, err = c(v); err != nil {
					return nil, err
				}
			}
			return values{col: strings.TrimSpace(v)}, nil
		},
	}
}

func attrRule(col, attrid, attr string) rule {
	return rule{
		attrid:  attrid,
		columns: []string{col},
		extract: func(n Node) (values, error) {
			v, ok := n.Attr(attr)
			if !ok {
				return nil, fmt.Errorf("%w: attribute %s", errNoValue, attr)
			}
			return values{col: v}, nil
		},
	}
}

func htmlRule(col, attrid string) rule {
	return rule{
		attrid:  attrid,
		columns: []string{col},
		extract: func(n Node) (values, error) {
			h, err := n.HTML()
			if err != nil {
				return nil, err
			}
			return values{col: h}, nil
		},
	}
}

// descriptionRule reads the first span, which holds the synopsis without
// the source attribution.
func descriptionRule() rule {
	return rule{
		attrid:  "description",
		columns: []string{storage.ColDescription},
		extract: func(n Node) (values, error) {
			span, ok := n.First("span")
			if !ok {
				return nil, fmt.Errorf("%w: span", errNoElement)
			}
			v, _ := removeMore(span.Text())
			return values{storage.ColDescription: strings.TrimSpace(v)}, nil
		},
	}
}

// subtitleRule keeps the raw subtitle and splits it into rating, year,
// genre and duration. Fewer than three parts leaves those four empty.
func subtitleRule() rule {
	return rule{
		attrid: "subtitle",
		columns: []string{
			storage.ColSubtitle, storage.ColMaturityRating, storage.ColReleaseYear,
			storage.ColGenre, storage.ColDuration,
		},
		extract: func(n Node) (values, error) {
			subtitle := strings.TrimSpace(n.Text())
			out := values{storage.ColSubtitle: subtitle}

			rating, year, genre, duration, ok := SplitSubtitle(subtitle)
			if ok {
				out[storage.ColMaturityRating] = rating
				out[storage.ColReleaseYear] = year
				out[storage.ColGenre] = genre
				out[storage.ColDuration] = duration
			}
			return out, nil
		},
	}
}

// SplitSubtitle splits a knowledge panel subtitle. Four or more parts map
// directly; with three parts the first holds both rating and year, as in
// "PG-13 2019 ‧ Action ‧ 3h 2m", or only the year for unrated films, as in
// "2019 ‧ Drama/Thriller ‧ 2h 12m".
func SplitSubtitle(subtitle string) (rating, year, genre, duration string, ok bool) {
	parts := strings.Split(subtitle, SubtitleSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) < 3:
		return "", "", "", "", false
	case len(parts) == 3:
		head := strings.Fields(parts[0])
		switch {
		case len(head) == 1 && isYear(head[0]):
			year = head[0]
		case len(head) > 0:
			rating = head[0]
			if len(head) > 1 {
				year = head[1]
			}
		}
		return rating, year, parts[1], parts[2], true
	default:
		return parts[0], parts[1], parts[2], parts[3], true
	}
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// reviewsRule classifies each anchor of the reviews block by source.
func reviewsRule() rule {
	var cols []string
	for _, s := range reviewSources {
		cols = append(cols, s.link, s.rating)
	}

	return rule{
		attrid:  "kc:/film/film:reviews",
		columns: cols,
		extract: func(n Node) (values, error) {
			out := values{}
			for _, link := range n.Links() {
				for _, s := range reviewSources {
					if !strings.Contains(link.Text, s.name) {
						continue
					}
					if _, claimed := out[s.link]; !claimed {
						out[s.link] = link.Href
						out[s.rating] = strings.TrimSpace(strings.ReplaceAll(link.Text, s.name, ""))
					}
					break
				}
			}
			return out, nil
		},
	}
}

func stripLabel(labels ...string) cleanup {
	return func(s string) (string, error) {
		for _, l := range labels {
			if strings.HasPrefix(s, l) {
				return strings.TrimPrefix(s, l), nil
			}
		}
		return s, nil
	}
}

func removeMore(s string) (string, error) {
	return strings.ReplaceAll(s, "MORE", ""), nil
}

func firstWord(s string) (string, error) {
	f := strings.Fields(s)
	if len(f) == 0 {
		return "", errNoValue
	}
	return f[0], nil
}
