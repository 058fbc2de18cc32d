package playability

import (
	"net/http"
	"strconv"
	"strings"
)

// QualityTier is a coarse playback quality recommendation.
type QualityTier string

// Quality tiers.
const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
	QualityAuto   QualityTier = "auto"
)

// Effective connection types as reported by the Network Information API.
const (
	EffectiveTypeSlow2G = "slow-2g"
	EffectiveType2G     = "2g"
	EffectiveType3G     = "3g"
	EffectiveType4G     = "4g"
)

// legacySafariVersion is the first Safari release not treated as legacy.
const legacySafariVersion = 13

// ConnectionHint is optional, best-effort network information. Only
// EffectiveType feeds RecommendQuality; DownlinkMbps and SaveData are carried
// through to API responses and logs for information.
type ConnectionHint struct {
	EffectiveType string  `json:"effective_type,omitempty"`
	DownlinkMbps  float64 `json:"downlink_mbps,omitempty"`
	SaveData      bool    `json:"save_data,omitempty"`
}

// ConnectionHintFromHeaders reads the ECT, Downlink and Save-Data client
// hints. It returns nil when none of them is present.
func ConnectionHintFromHeaders(h http.Header) *ConnectionHint {
	ect := strings.ToLower(strings.TrimSpace(h.Get("ECT")))
	downlink := strings.TrimSpace(h.Get("Downlink"))
	saveData := strings.EqualFold(strings.TrimSpace(h.Get("Save-Data")), "on")

	if ect == "" && downlink == "" && !saveData {
		return nil
	}

	hint := &ConnectionHint{EffectiveType: ect, SaveData: saveData}
	if v, err := strconv.ParseFloat(downlink, 64); err == nil && v >= 0 {
		hint.DownlinkMbps = v
	}
	return hint
}

// RecommendQuality picks a quality tier from the hint's effective type and the
// engine. A slow connection wins over engine heuristics; a nil hint skips the
// connection check.
func RecommendQuality(profile CapabilityProfile, hint *ConnectionHint) QualityTier {
	if hint != nil {
		switch strings.ToLower(strings.TrimSpace(hint.EffectiveType)) {
		case EffectiveTypeSlow2G, EffectiveType2G:
			return QualityLow
		case EffectiveType3G:
			return QualityMedium
		}
	}

	if profile.Engine() == EngineSafari && profile.EngineVersion() < legacySafariVersion {
		return QualityMedium
	}
	return QualityAuto
}
