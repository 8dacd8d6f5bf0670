package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/aggregate"
	"github.com/sells-group/trackscout/internal/config"
	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/scorer"
	"github.com/sells-group/trackscout/internal/source"
	"github.com/sells-group/trackscout/internal/store"
	"github.com/sells-group/trackscout/pkg/lastfm"
	"github.com/sells-group/trackscout/pkg/musicbrainz"
	"github.com/sells-group/trackscout/pkg/spotify"
	"github.com/sells-group/trackscout/pkg/youtube"
)

// app bundles the wired pipeline for the commands.
type app struct {
	limiter  *ratelimit.Limiter
	pipeline *aggregate.Pipeline
	engine   *scorer.Engine
}

// buildApp wires providers from config: the primary is always on, optional
// providers are enabled only when their credentials are present.
func buildApp(c *config.Config) (*app, error) {
	limiter := ratelimit.New(c.RateLimit.Limits())

	mbAPI := musicbrainz.NewClient(c.MusicBrainz.UserAgent,
		musicbrainz.WithBaseURL(c.MusicBrainz.BaseURL))
	primary := source.NewMusicBrainz(mbAPI, limiter,
		c.RateLimit.Patience(model.ProviderMusicBrainz))

	var optional []source.Client
	var disabled []string

	if c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" {
		api := spotify.NewClient(c.Spotify.ClientID, c.Spotify.ClientSecret,
			spotify.WithBaseURL(c.Spotify.BaseURL),
			spotify.WithTokenURL(c.Spotify.TokenURL))
		optional = append(optional, source.NewSpotify(api, limiter,
			c.RateLimit.Patience(model.ProviderSpotify)))
	} else {
		disabled = append(disabled, model.ProviderSpotify)
	}

	if c.YouTube.Key != "" {
		api := youtube.NewClient(c.YouTube.Key, youtube.WithBaseURL(c.YouTube.BaseURL))
		optional = append(optional, source.NewYouTube(api, limiter,
			c.RateLimit.Patience(model.ProviderYouTube)))
	} else {
		disabled = append(disabled, model.ProviderYouTube)
	}

	if c.LastFM.Key != "" {
		api := lastfm.NewClient(c.LastFM.Key, lastfm.WithBaseURL(c.LastFM.BaseURL))
		optional = append(optional, source.NewLastFM(api, limiter,
			c.RateLimit.Patience(model.ProviderLastFM)))
	} else {
		disabled = append(disabled, model.ProviderLastFM)
	}

	if len(disabled) > 0 {
		zap.L().Info("providers disabled, no credentials", zap.Strings("providers", disabled))
	}

	tables := scorer.DefaultTables()
	if c.Scoring.TablesPath != "" {
		t, err := scorer.LoadTables(c.Scoring.TablesPath)
		if err != nil {
			return nil, err
		}
		tables = t
	}

	return &app{
		limiter:  limiter,
		pipeline: aggregate.New(primary, optional, aggregate.WithDisabled(disabled...)),
		engine:   scorer.New(tables),
	}, nil
}

// openStore opens the configured persistence driver and runs migrations.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		s, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		s, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
