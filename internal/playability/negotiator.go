package playability

import (
	"io"
	"log/slog"
)

// NegotiationRequest describes the asset to negotiate for.
type NegotiationRequest struct {
	Locator             string
	AvailableExtensions []string
	Hint                *ConnectionHint
}

// Negotiation is everything a player needs to attempt playback in one
// environment.
type Negotiation struct {
	Profile    CapabilityProfile
	BestFormat string
	// HasBestFormat is false when no extension could be auto-selected and the
	// player should start with the unmodified locator.
	HasBestFormat bool
	Sources       []SourceDescriptor
	Config        PlayerConfig
	Quality       QualityTier
}

// PreferredLocator returns the locator to attempt first.
func (n Negotiation) PreferredLocator(original string) string {
	if !n.HasBestFormat {
		return original
	}
	stem, tail := SourceStem(original)
	return stem + "." + n.BestFormat + tail
}

// Negotiator runs the prober, selector and builders for one environment.
type Negotiator struct {
	logger *slog.Logger
	prober *Prober
}

// NewNegotiator creates a negotiator.
func NewNegotiator(logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Negotiator{
		logger: logger,
		prober: NewProber(logger),
	}
}

// Prober returns the prober used by the negotiator.
func (n *Negotiator) Prober() *Prober {
	return n.prober
}

// Negotiate probes env once and derives sources, config, quality and the
// best format from that profile. Probes are memoized for the duration of the
// call only.
func (n *Negotiator) Negotiate(env Environment, req NegotiationRequest) Negotiation {
	env = Memoize(env)
	profile := n.prober.Probe(env)

	best, ok := SelectBestFormat(env, profile, req.AvailableExtensions)
	result := Negotiation{
		Profile:       profile,
		BestFormat:    best,
		HasBestFormat: ok,
		Sources:       BuildSources(req.Locator, profile),
		Config:        BuildConfig(profile),
		Quality:       RecommendQuality(profile, req.Hint),
	}

	n.logger.Debug("playback negotiated",
		slog.String("engine", profile.Engine().String()),
		slog.Int("engine_version", profile.EngineVersion()),
		slog.String("best_format", best),
		slog.Int("source_count", len(result.Sources)),
		slog.String("quality", string(result.Quality)),
	)
	return result
}

// Sources derives the source list for locator in env. It satisfies the
// session package's source provider contract for retries.
func (n *Negotiator) Sources(env Environment, locator string) []SourceDescriptor {
	return BuildSources(locator, n.prober.Probe(env))
}
