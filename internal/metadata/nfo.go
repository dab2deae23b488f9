package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
)

type typedValue struct {
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

type nfoRating struct {
	Value string `xml:"value"`
}

type nfoStream struct {
	Video struct {
		Codec  string `xml:"codec"`
		Width  string `xml:"width"`
		Height string `xml:"height"`
	} `xml:"video"`
	Audio struct {
		Codec    string `xml:"codec"`
		Channels string `xml:"channels"`
	} `xml:"audio"`
}

// nfoDoc is the XML shape shared by <movie> and <episodedetails> sidecars.
type nfoDoc struct {
	XMLName       xml.Name
	Title         string       `xml:"title"`
	OriginalTitle string       `xml:"originaltitle"`
	Year          string       `xml:"year"`
	Edition       string       `xml:"edition"`
	SortTitle     string       `xml:"sorttitle"`
	Director      string       `xml:"director"`
	Rating        nfoRating    `xml:"rating"`
	VideoSource   string       `xml:"videosource"`
	Genres        []string     `xml:"genre"`
	Countries     []string     `xml:"country"`
	IDs           []typedValue `xml:"id"`
	UniqueIDs     []typedValue `xml:"uniqueid"`
	FileInfo      struct {
		StreamDetails nfoStream `xml:"streamdetails"`
	} `xml:"fileinfo"`
}

// FindNFO returns the first .nfo file directly inside dir, or "".
func FindNFO(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".nfo") {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

// ParseNFO reads a sidecar file and extracts the metadata record. The
// second return reports whether the sidecar describes a TV episode
// (<episodedetails>) rather than a movie. Sidecars whose root element is
// neither are rejected with a MetadataUnavailable error.
func ParseNFO(path string) (Record, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, false, pipeerrors.NewMetadataUnavailable("read sidecar", err)
	}

	var doc nfoDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Record{}, false, pipeerrors.NewMetadataUnavailable(
			fmt.Sprintf("parse sidecar %s", filepath.Base(path)), err)
	}

	switch doc.XMLName.Local {
	case "movie", "episodedetails":
	default:
		return Record{}, false, pipeerrors.NewMetadataUnavailable(
			fmt.Sprintf("sidecar %s has no movie/episodedetails root", filepath.Base(path)), nil)
	}

	record := Record{
		Title:         strings.TrimSpace(doc.Title),
		OriginalTitle: strings.TrimSpace(doc.OriginalTitle),
		Year:          strings.TrimSpace(doc.Year),
		Edition:       strings.TrimSpace(doc.Edition),
		SortTitle:     strings.TrimSpace(doc.SortTitle),
		Director:      strings.TrimSpace(doc.Director),
		Rating:        strings.TrimSpace(doc.Rating.Value),
		VideoSource:   strings.TrimSpace(doc.VideoSource),
		VideoCodec:    strings.TrimSpace(doc.FileInfo.StreamDetails.Video.Codec),
		AudioCodec:    strings.TrimSpace(doc.FileInfo.StreamDetails.Audio.Codec),
		AudioChannels: strings.TrimSpace(doc.FileInfo.StreamDetails.Audio.Channels),
	}

	for _, g := range doc.Genres {
		if g = strings.TrimSpace(g); g != "" {
			record.Genres = append(record.Genres, g)
		}
	}
	for _, c := range doc.Countries {
		if c = strings.TrimSpace(c); c != "" {
			record.Countries = append(record.Countries, c)
		}
	}

	for _, id := range doc.IDs {
		if id.Type == "imdb" && id.Value != "" {
			record.IMDbID = strings.TrimSpace(id.Value)
		}
	}
	for _, id := range doc.UniqueIDs {
		switch id.Type {
		case "imdb":
			if record.IMDbID == "" {
				record.IMDbID = strings.TrimSpace(id.Value)
			}
		case "tmdb":
			record.TMDBID = strings.TrimSpace(id.Value)
		}
	}

	width := strings.TrimSpace(doc.FileInfo.StreamDetails.Video.Width)
	height := strings.TrimSpace(doc.FileInfo.StreamDetails.Video.Height)
	if width != "" && height != "" {
		record.Resolution = width + "x" + height
	}

	return record, doc.XMLName.Local == "episodedetails", nil
}

// sidecarDoc is the written form: same fields, explicit element order.
type sidecarDoc struct {
	XMLName       xml.Name
	Title         string       `xml:"title,omitempty"`
	OriginalTitle string       `xml:"originaltitle,omitempty"`
	SortTitle     string       `xml:"sorttitle,omitempty"`
	Year          string       `xml:"year,omitempty"`
	Edition       string       `xml:"edition,omitempty"`
	Rating        *nfoRating   `xml:"rating,omitempty"`
	Genres        []string     `xml:"genre,omitempty"`
	Countries     []string     `xml:"country,omitempty"`
	Director      string       `xml:"director,omitempty"`
	VideoSource   string       `xml:"videosource,omitempty"`
	UniqueIDs     []typedValue `xml:"uniqueid,omitempty"`
}

// WriteSidecar writes record as an XML sidecar next to the media. The file
// suffix is always normalised to .nfo, whatever the caller passed in path.
// TV episodes are written with an <episodedetails> root, movies with
// <movie>.
func WriteSidecar(path string, record Record, isTV bool) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".nfo") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".nfo"
	}

	root := "movie"
	if isTV {
		root = "episodedetails"
	}

	doc := sidecarDoc{
		XMLName:       xml.Name{Local: root},
		Title:         record.Title,
		OriginalTitle: record.OriginalTitle,
		SortTitle:     record.SortTitle,
		Year:          record.Year,
		Edition:       record.Edition,
		Genres:        record.Genres,
		Countries:     record.Countries,
		Director:      record.Director,
		VideoSource:   record.VideoSource,
	}
	if record.Rating != "" {
		doc.Rating = &nfoRating{Value: record.Rating}
	}
	if record.IMDbID != "" {
		doc.UniqueIDs = append(doc.UniqueIDs, typedValue{Type: "imdb", Value: record.IMDbID})
	}
	if record.TMDBID != "" {
		doc.UniqueIDs = append(doc.UniqueIDs, typedValue{Type: "tmdb", Default: "true", Value: record.TMDBID})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", pipeerrors.NewMetadataUnavailable("encode sidecar", err)
	}

	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", pipeerrors.NewMetadataUnavailable("write sidecar", err)
	}
	return path, nil
}
