package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/pianola/internal/playability"
	"github.com/jmylchreest/pianola/pkg/format"
)

// probeOptions describes the browser to negotiate for.
type probeOptions struct {
	userAgent  string
	probes     string
	ect        string
	locator    string
	extensions []string
	features   []string
	json       bool
}

var probeFlags probeOptions

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run playability negotiation for a described browser",
	Long: `Run playability negotiation offline for a browser described by flags.

The probe results use the X-Media-Probes syntax. Anything not reported is
treated as unsupported, exactly as the API does:

  pianola probe --user-agent "$UA" --probes "mp4=1, webm=0, hls=1" \
    --locator https://cdn.example.com/lesson.mov --ext mp4,webm`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeFlags.userAgent, "user-agent", "", "browser User-Agent string")
	probeCmd.Flags().StringVar(&probeFlags.probes, "probes", "", "probe results, e.g. \"mp4=1, webm=0\"")
	probeCmd.Flags().StringVar(&probeFlags.ect, "ect", "", "effective connection type (slow-2g, 2g, 3g, 4g)")
	probeCmd.Flags().StringVar(&probeFlags.locator, "locator", "", "lesson video URL to build sources for")
	probeCmd.Flags().StringSliceVar(&probeFlags.extensions, "ext", nil, "extensions the media host serves")
	probeCmd.Flags().StringSliceVar(&probeFlags.features, "feature", nil, "platform capabilities present, e.g. fullscreen,webgl")
	probeCmd.Flags().BoolVar(&probeFlags.json, "json", false, "output as JSON")
}

// probeResult is the CLI view of a negotiation.
type probeResult struct {
	Capabilities     playability.CapabilityReport   `json:"capabilities" yaml:"capabilities"`
	BestFormat       string                         `json:"best_format,omitempty" yaml:"best_format,omitempty"`
	PreferredLocator string                         `json:"preferred_locator,omitempty" yaml:"preferred_locator,omitempty"`
	Sources          []playability.SourceDescriptor `json:"sources,omitempty" yaml:"sources,omitempty"`
	Quality          playability.QualityTier        `json:"quality" yaml:"quality"`
	EngineOverrides  map[string]any                 `json:"engine_overrides,omitempty" yaml:"engine_overrides,omitempty"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	result, err := negotiateProbe(probeFlags)
	if err != nil {
		return err
	}
	return writeProbeResult(cmd.OutOrStdout(), result, probeFlags.json)
}

// negotiateProbe builds the same environment the API builds from request
// headers and runs negotiation against it.
func negotiateProbe(opts probeOptions) (probeResult, error) {
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		return probeResult{}, fmt.Errorf("building probe request: %w", err)
	}
	req.Header.Set("User-Agent", opts.userAgent)
	req.Header.Set(playability.MediaProbesHeader, opts.probes)
	if opts.ect != "" {
		req.Header.Set("ECT", opts.ect)
	}

	report := &playability.ClientReport{Features: make(map[string]bool, len(opts.features))}
	for _, f := range opts.features {
		report.Features[f] = true
	}
	env := playability.NewRequestEnvironment(req, report)

	n := playability.NewNegotiator(slog.Default()).Negotiate(env, playability.NegotiationRequest{
		Locator:             opts.locator,
		AvailableExtensions: opts.extensions,
		Hint:                env.ConnectionHint(),
	})

	result := probeResult{
		Capabilities:    n.Profile.Report(),
		BestFormat:      n.BestFormat,
		Sources:         n.Sources,
		Quality:         n.Quality,
		EngineOverrides: n.Config.EngineOverrides,
	}
	if opts.locator != "" {
		result.PreferredLocator = n.PreferredLocator(opts.locator)
	}
	return result, nil
}

func writeProbeResult(w io.Writer, result probeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	supported := 0
	for _, ok := range result.Capabilities.Containers {
		if ok {
			supported++
		}
	}
	if _, err := fmt.Fprintf(w, "# %s %d: %s, %s\n",
		result.Capabilities.Engine,
		result.Capabilities.EngineVersion,
		format.Count(int64(supported), "playable container", "playable containers"),
		format.Count(int64(len(result.Sources)), "source", "sources"),
	); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding probe result: %w", err)
	}
	return enc.Close()
}
