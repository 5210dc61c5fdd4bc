// Package webhook implements the inbound event pipeline for Sonarr, Radarr
// and Readarr: parsing, deduplication, recipient resolution, dispatch and
// persistence.
package webhook

import "strings"

// Event types shared across the *arr webhook protocols.
const (
	eventTest     = "Test"
	eventDownload = "Download"

	// Sonarr has emitted both spellings for import events across versions.
	eventEpisodeImported       = "EpisodeImported"
	eventEpisodeImportedSpaced = "Episode Imported"
)

// Image is one artwork reference from a webhook payload.
type Image struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url"`
	RemoteURL string `json:"remoteUrl"`
}

// Series is the parent item of a Sonarr event.
type Series struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	Tags   []string `json:"tags"`
	TagsAr []string `json:"tagsArray"` // older payloads carry tags here
	Images []Image  `json:"images"`
}

// AllTags merges the two tag representations Sonarr has used over time.
func (s *Series) AllTags() []string {
	if len(s.Tags) == 0 {
		return s.TagsAr
	}
	return append(append([]string{}, s.Tags...), s.TagsAr...)
}

// Episode is one sub-item of a Sonarr event.
type Episode struct {
	ID            int64  `json:"id"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	Overview      string `json:"overview"`
	AirDateUTC    string `json:"airDateUtc"`
}

// Release describes the grabbed release, used to disambiguate repeat
// deliveries of the same episode (proper, repack).
type Release struct {
	ReleaseTitle string `json:"releaseTitle"`
	Quality      string `json:"quality"`
}

// EpisodeFile is present on import events and carries the final quality.
type EpisodeFile struct {
	RelativePath string `json:"relativePath"`
	Quality      string `json:"quality"`
}

// SonarrEvent is the payload shape posted by Sonarr.
type SonarrEvent struct {
	EventType    string        `json:"eventType"`
	Series       *Series       `json:"series"`
	Episodes     []Episode     `json:"episodes"`
	Release      *Release      `json:"release"`
	EpisodeFile  *EpisodeFile  `json:"episodeFile"`
	EpisodeFiles []EpisodeFile `json:"episodeFiles"`
}

// Movie is the parent item of a Radarr event.
type Movie struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	TmdbID int64    `json:"tmdbId"`
	Tags   []string `json:"tags"`
	Images []Image  `json:"images"`
}

// MovieFile carries the imported file details for a Radarr event.
type MovieFile struct {
	RelativePath string `json:"relativePath"`
	Quality      string `json:"quality"`
}

// RadarrEvent is the payload shape posted by Radarr.
type RadarrEvent struct {
	EventType string     `json:"eventType"`
	Movie     *Movie     `json:"movie"`
	Release   *Release   `json:"release"`
	MovieFile *MovieFile `json:"movieFile"`
}

// Author is the parent item of a Readarr event.
type Author struct {
	ID   int64    `json:"id"`
	Name string   `json:"authorName"`
	Tags []string `json:"tags"`
}

// Book is one sub-item of a Readarr event.
type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate"`
}

// ReadarrEvent is the payload shape posted by Readarr.
type ReadarrEvent struct {
	EventType string   `json:"eventType"`
	Author    *Author  `json:"author"`
	Books     []Book   `json:"books"`
	Release   *Release `json:"release"`
}

// posterURL picks the poster artwork, preferring the remote URL which is
// reachable from outside the media server.
func posterURL(images []Image) string {
	return imageURL(images, "poster")
}

func fanartURL(images []Image) string {
	return imageURL(images, "fanart")
}

func imageURL(images []Image, coverType string) string {
	for _, img := range images {
		if strings.EqualFold(img.CoverType, coverType) {
			if img.RemoteURL != "" {
				return img.RemoteURL
			}
			return img.URL
		}
	}
	return ""
}
