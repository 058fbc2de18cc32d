package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/pianola/internal/playability"
)

// Negotiator negotiates playback for a browser environment.
type Negotiator interface {
	Negotiate(env playability.Environment, req playability.NegotiationRequest) playability.Negotiation
	Capabilities(env playability.Environment) playability.CapabilityReport
}

// PlayabilityHandler handles negotiation and capability endpoints.
type PlayabilityHandler struct {
	negotiator Negotiator
}

// NewPlayabilityHandler creates a new playability handler.
func NewPlayabilityHandler(negotiator Negotiator) *PlayabilityHandler {
	return &PlayabilityHandler{negotiator: negotiator}
}

// NegotiateInput is the input for negotiating a video locator.
type NegotiateInput struct {
	ClientHints
	Body struct {
		ClientCapabilities
		Locator string `json:"locator" minLength:"1" doc:"Video locator as stored in the lesson catalog"`
	}
}

// NegotiateOutput is the output for negotiating a video locator.
type NegotiateOutput struct {
	Body NegotiationResponse
}

// CapabilitiesInput is the input for the capability report.
type CapabilitiesInput struct {
	ClientHints
}

// CapabilitiesOutput is the output for the capability report.
type CapabilitiesOutput struct {
	Body playability.CapabilityReport
}

// Register registers the playability routes with the API.
func (h *PlayabilityHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "negotiatePlayback",
		Method:      "POST",
		Path:        "/api/v1/playability/negotiate",
		Summary:     "Negotiate playback",
		Description: "Detects the calling browser's capabilities and returns the best format, ordered sources, player configuration and quality tier for a video locator",
		Tags:        []string{"Playability"},
	}, h.Negotiate)

	huma.Register(api, huma.Operation{
		OperationID: "getCapabilities",
		Method:      "GET",
		Path:        "/api/v1/playability/capabilities",
		Summary:     "Get capabilities",
		Description: "Returns the capability report for the calling browser from its client hint and probe headers",
		Tags:        []string{"Playability"},
	}, h.Capabilities)
}

// Negotiate returns the playback plan for a locator.
func (h *PlayabilityHandler) Negotiate(ctx context.Context, input *NegotiateInput) (*NegotiateOutput, error) {
	env := input.environment(input.Body.report())
	result := h.negotiator.Negotiate(env, playability.NegotiationRequest{
		Locator:             input.Body.Locator,
		AvailableExtensions: input.Body.AvailableExtensions,
		Hint:                input.Body.hint(env),
	})

	return &NegotiateOutput{Body: negotiationResponse(result, input.Body.Locator)}, nil
}

// Capabilities returns the capability report for the caller.
func (h *PlayabilityHandler) Capabilities(ctx context.Context, input *CapabilitiesInput) (*CapabilitiesOutput, error) {
	return &CapabilitiesOutput{Body: h.negotiator.Capabilities(input.environment(nil))}, nil
}
