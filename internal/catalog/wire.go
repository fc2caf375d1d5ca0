package catalog

import (
	"github.com/rs/zerolog"

	"mangalib/internal/apiclient"
	"mangalib/internal/monitor"
	"mangalib/pkg/utils"
)

// NewFromConfig builds the MangaDex and NetTrom providers, each over its
// own client, and aggregates them in that order. Calls land in mon when
// it is non-nil.
func NewFromConfig(cfg *utils.Config, mon *monitor.Monitor, log zerolog.Logger) *Aggregator {
	common := []apiclient.Option{
		apiclient.WithMonitor(mon),
		apiclient.WithDebug(cfg.Debug),
		apiclient.WithLogger(log),
	}

	md := apiclient.New(
		utils.APIProfile{BaseURL: cfg.MangaDex.BaseURL, Timeout: cfg.MangaDex.Timeout},
		append(common, apiclient.WithRateLimit(cfg.MangaDex.RequestsPerSecond))...,
	)
	nt := apiclient.New(
		utils.APIProfile{BaseURL: cfg.NetTrom.BaseURL, Timeout: cfg.NetTrom.Timeout},
		append(common,
			apiclient.WithRateLimit(cfg.NetTrom.RequestsPerSecond),
			apiclient.WithHeader("User-Agent", NetTromUserAgent),
		)...,
	)

	return NewAggregator(log, NewMangaDex(md, log), NewNetTrom(nt, log))
}
