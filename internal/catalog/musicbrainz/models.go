package musicbrainz

import (
	"fmt"
	"strings"

	"shelfsync/internal/catalog"
)

type genre struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type artistCredit struct {
	Name   string `json:"name"`
	Artist artist `json:"artist"`
}

type artist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Country  string  `json:"country"`
	Genres   []genre `json:"genres"`
	LifeSpan struct {
		Begin string `json:"begin"`
	} `json:"life-span"`
}

type label struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	LifeSpan struct {
		Begin string `json:"begin"`
	} `json:"life-span"`
}

type releaseGroup struct {
	PrimaryType string  `json:"primary-type"`
	Genres      []genre `json:"genres"`
}

type labelInfo struct {
	Label *label `json:"label"`
}

type medium struct {
	Format string `json:"format"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Barcode      string         `json:"barcode"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
	Genres       []genre        `json:"genres"`
	LabelInfo    []labelInfo    `json:"label-info"`
	Media        []medium       `json:"media"`
	CoverArchive struct {
		Front bool `json:"front"`
	} `json:"cover-art-archive"`
}

type recording struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []artistCredit `json:"artist-credit"`
	Releases         []release      `json:"releases"`
	Genres           []genre        `json:"genres"`
	ISRCs            []string       `json:"isrcs"`
}

type isrcResponse struct {
	ISRC       string      `json:"isrc"`
	Recordings []recording `json:"recordings"`
}

type searchResponse struct {
	Recordings []recording `json:"recordings"`
	Releases   []release   `json:"releases"`
	Artists    []artist    `json:"artists"`
	Labels     []label     `json:"labels"`
}

type urlResponse struct {
	Relations []struct {
		Artist *artist `json:"artist"`
	} `json:"relations"`
}

func (r recording) record(isrc string) *catalog.Record {
	rec := &catalog.Record{
		Provider:     Name,
		ID:           r.ID,
		Kind:         catalog.KindTrack,
		Title:        strings.TrimSpace(r.Title),
		ReleaseDate:  r.FirstReleaseDate,
		Genres:       genreNames(r.Genres),
		Contributors: credits(r.ArtistCredit),
		URL:          siteBaseURL + "recording/" + r.ID,
		ExternalIDs:  map[string]string{Name: r.ID},
	}
	if isrc == "" && len(r.ISRCs) > 0 {
		isrc = r.ISRCs[0]
	}
	if isrc != "" {
		rec.ExternalIDs[catalog.SchemeISRC] = isrc
	}
	if rel, ok := preferredRelease(r.Releases); ok {
		album := rel.record()
		album.Partial = true
		if len(album.Related) == 0 {
			album.Related = artistRecords(r.ArtistCredit)
		}
		if album.ReleaseDate != "" && rec.ReleaseDate == "" {
			rec.ReleaseDate = album.ReleaseDate
		}
		rec.Related = []catalog.Record{*album}
	}
	return rec
}

func (r release) record() *catalog.Record {
	rec := &catalog.Record{
		Provider:     Name,
		ID:           r.ID,
		Kind:         catalog.KindAlbum,
		Title:        strings.TrimSpace(r.Title),
		ReleaseDate:  r.Date,
		Genres:       catalog.DedupeFold(append(genreNames(r.Genres), genreNames(r.ReleaseGroup.Genres)...)),
		Contributors: credits(r.ArtistCredit),
		URL:          siteBaseURL + "release/" + r.ID,
		ExternalIDs:  map[string]string{Name: r.ID},
		Related:      artistRecords(r.ArtistCredit),
	}
	var formats []string
	for _, m := range r.Media {
		formats = append(formats, m.Format)
	}
	rec.Platforms = catalog.DedupeFold(formats)
	if r.ReleaseGroup.PrimaryType != "" {
		rec.Themes = []string{r.ReleaseGroup.PrimaryType}
	}
	switch barcode := strings.TrimSpace(r.Barcode); len(barcode) {
	case 12:
		rec.ExternalIDs[catalog.SchemeUPC] = barcode
	case 13:
		rec.ExternalIDs[catalog.SchemeEAN] = barcode
	}
	if r.CoverArchive.Front {
		rec.CoverURL = fmt.Sprintf(coverArtURL, r.ID)
	}
	for _, info := range r.LabelInfo {
		if info.Label == nil || info.Label.ID == "" {
			continue
		}
		lbl := info.Label.record()
		lbl.Partial = true
		rec.Related = append(rec.Related, *lbl)
		rec.Contributors = append(rec.Contributors, catalog.Contributor{Name: info.Label.Name, Role: "Label"})
		break
	}
	return rec
}

func (a artist) record() *catalog.Record {
	rec := &catalog.Record{
		Provider:    Name,
		ID:          a.ID,
		Kind:        catalog.KindArtist,
		Title:       strings.TrimSpace(a.Name),
		ReleaseDate: a.LifeSpan.Begin,
		Genres:      genreNames(a.Genres),
		URL:         siteBaseURL + "artist/" + a.ID,
		ExternalIDs: map[string]string{Name: a.ID},
	}
	if a.Type != "" {
		rec.Themes = []string{a.Type}
	}
	if a.Country != "" {
		rec.Platforms = []string{a.Country}
	}
	return rec
}

func (l label) record() *catalog.Record {
	rec := &catalog.Record{
		Provider:    Name,
		ID:          l.ID,
		Kind:        catalog.KindLabel,
		Title:       strings.TrimSpace(l.Name),
		ReleaseDate: l.LifeSpan.Begin,
		URL:         siteBaseURL + "label/" + l.ID,
		ExternalIDs: map[string]string{Name: l.ID},
	}
	if l.Country != "" {
		rec.Platforms = []string{l.Country}
	}
	return rec
}

// preferredRelease picks the first official release, falling back to the
// first release listed.
func preferredRelease(releases []release) (release, bool) {
	if len(releases) == 0 {
		return release{}, false
	}
	for _, r := range releases {
		if strings.EqualFold(r.Status, "official") {
			return r, true
		}
	}
	return releases[0], true
}

func artistRecords(credits []artistCredit) []catalog.Record {
	var out []catalog.Record
	for _, c := range credits {
		if c.Artist.ID == "" {
			continue
		}
		rec := c.Artist.record()
		rec.Partial = true
		out = append(out, *rec)
	}
	return out
}

func credits(list []artistCredit) []catalog.Contributor {
	out := make([]catalog.Contributor, 0, len(list))
	for _, c := range list {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = strings.TrimSpace(c.Artist.Name)
		}
		if name != "" {
			out = append(out, catalog.Contributor{Name: name, Role: "Artist"})
		}
	}
	return out
}

func genreNames(genres []genre) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		out = append(out, catalog.TitleCase(g.Name))
	}
	return catalog.DedupeFold(out)
}
