package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golift.io/starr"
	"golift.io/starr/radarr"
	"golift.io/starr/sonarr"

	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
)

// Instance is one configured Radarr or Sonarr endpoint.
type Instance struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Type   string `yaml:"type" mapstructure:"type"` // "radarr" or "sonarr"
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// Catalog is the optional remote lookup: movie records resolve against the
// configured Radarr instances by title+year, episodes against Sonarr by
// title+season+episode. Clients are created lazily per instance and cached.
type Catalog struct {
	mu            sync.Mutex
	instances     []Instance
	radarrClients map[string]*radarr.Radarr
	sonarrClients map[string]*sonarr.Sonarr
	log           *slog.Logger
}

// NewCatalog creates a catalog over the configured instances. An empty
// instance list yields a catalog whose lookups always miss.
func NewCatalog(instances []Instance, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		instances:     instances,
		radarrClients: make(map[string]*radarr.Radarr),
		sonarrClients: make(map[string]*sonarr.Sonarr),
		log:           log.With("component", "catalog"),
	}
}

// Configured reports whether any instance of the given type exists.
func (c *Catalog) Configured(instanceType string) bool {
	for _, inst := range c.instances {
		if strings.EqualFold(inst.Type, instanceType) {
			return true
		}
	}
	return false
}

func (c *Catalog) radarrFor(inst Instance) *radarr.Radarr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.radarrClients[inst.Name]; ok {
		return client
	}
	client := radarr.New(&starr.Config{URL: inst.URL, APIKey: inst.APIKey})
	c.radarrClients[inst.Name] = client
	return client
}

func (c *Catalog) sonarrFor(inst Instance) *sonarr.Sonarr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.sonarrClients[inst.Name]; ok {
		return client
	}
	client := sonarr.New(&starr.Config{URL: inst.URL, APIKey: inst.APIKey})
	c.sonarrClients[inst.Name] = client
	return client
}

// TestConnection verifies an instance responds to a system-status probe.
func (c *Catalog) TestConnection(ctx context.Context, instanceType, url, apiKey string) error {
	switch strings.ToLower(instanceType) {
	case "radarr":
		client := radarr.New(&starr.Config{URL: url, APIKey: apiKey})
		if _, err := client.GetSystemStatusContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to Radarr: %w", err)
		}
		return nil
	case "sonarr":
		client := sonarr.New(&starr.Config{URL: url, APIKey: apiKey})
		if _, err := client.GetSystemStatus(); err != nil {
			return fmt.Errorf("failed to connect to Sonarr: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported instance type: %s", instanceType)
	}
}

// TriggerDownloadScan asks every configured instance of the matching type
// to rescan its download folder after a release landed in the library.
func (c *Catalog) TriggerDownloadScan(ctx context.Context, isTV bool) {
	for _, inst := range c.instances {
		if isTV && strings.EqualFold(inst.Type, "sonarr") {
			client := c.sonarrFor(inst)
			if _, err := client.SendCommandContext(ctx, &sonarr.CommandRequest{Name: "DownloadedEpisodesScan"}); err != nil {
				c.log.Warn("Sonarr scan trigger failed", "instance", inst.Name, "error", err)
			}
		}
		if !isTV && strings.EqualFold(inst.Type, "radarr") {
			client := c.radarrFor(inst)
			if _, err := client.SendCommandContext(ctx, &radarr.CommandRequest{Name: "DownloadedMoviesScan"}); err != nil {
				c.log.Warn("Radarr scan trigger failed", "instance", inst.Name, "error", err)
			}
		}
	}
}

// Enrich resolves the parsed name against the configured catalog and
// overlays the found fields onto record. A miss returns the record
// unchanged with a MetadataUnavailable error; callers treat that as
// non-fatal.
func (c *Catalog) Enrich(ctx context.Context, record Record, parsed ParsedName, isTV bool) (Record, error) {
	if isTV {
		return c.enrichEpisode(ctx, record, parsed)
	}
	return c.enrichMovie(ctx, record, parsed)
}

func (c *Catalog) enrichMovie(ctx context.Context, record Record, parsed ParsedName) (Record, error) {
	title := record.Title
	if title == "" {
		title = parsed.Title
	}
	if title == "" {
		return record, pipeerrors.NewMetadataUnavailable("no title candidate for movie lookup", nil)
	}

	for _, inst := range c.instances {
		if !strings.EqualFold(inst.Type, "radarr") {
			continue
		}
		client := c.radarrFor(inst)
		movies, err := client.GetMovieContext(ctx, &radarr.GetMovie{})
		if err != nil {
			c.log.Warn("Radarr movie listing failed", "instance", inst.Name, "error", err)
			continue
		}

		for _, movie := range movies {
			if !strings.EqualFold(movie.Title, title) {
				continue
			}
			if parsed.Year > 0 && movie.Year > 0 && movie.Year != parsed.Year {
				continue
			}

			record.Title = movie.Title
			if movie.Year > 0 {
				record.Year = strconv.Itoa(movie.Year)
			}
			if len(movie.Genres) > 0 {
				record.Genres = movie.Genres
			}
			if movie.ImdbID != "" {
				record.IMDbID = movie.ImdbID
			}
			if movie.TmdbID > 0 {
				record.TMDBID = strconv.FormatInt(movie.TmdbID, 10)
			}
			return record, nil
		}
	}

	return record, pipeerrors.NewMetadataUnavailable(
		fmt.Sprintf("movie %q not found in any configured catalog", title), nil)
}

func (c *Catalog) enrichEpisode(ctx context.Context, record Record, parsed ParsedName) (Record, error) {
	title := record.Title
	if title == "" {
		title = parsed.Title
	}
	if title == "" {
		return record, pipeerrors.NewMetadataUnavailable("no title candidate for series lookup", nil)
	}

	for _, inst := range c.instances {
		if !strings.EqualFold(inst.Type, "sonarr") {
			continue
		}
		client := c.sonarrFor(inst)
		series, err := client.GetAllSeriesContext(ctx)
		if err != nil {
			c.log.Warn("Sonarr series listing failed", "instance", inst.Name, "error", err)
			continue
		}

		for _, show := range series {
			if !strings.EqualFold(show.Title, title) {
				continue
			}

			record.Title = show.Title
			if show.Year > 0 && record.Year == "" {
				record.Year = strconv.Itoa(show.Year)
			}
			if len(show.Genres) > 0 {
				record.Genres = show.Genres
			}
			if show.ImdbID != "" {
				record.IMDbID = show.ImdbID
			}

			if parsed.Season > 0 && parsed.Episode > 0 {
				episodes, err := client.GetSeriesEpisodesContext(ctx, &sonarr.GetEpisode{SeriesID: show.ID})
				if err == nil {
					for _, episode := range episodes {
						if int(episode.SeasonNumber) == parsed.Season && int(episode.EpisodeNumber) == parsed.Episode {
							if episode.Title != "" {
								record.SortTitle = episode.Title
							}
							break
						}
					}
				}
			}
			return record, nil
		}
	}

	return record, pipeerrors.NewMetadataUnavailable(
		fmt.Sprintf("series %q not found in any configured catalog", title), nil)
}
