package scoring

import "context"

// Attribute names requested from the text scoring service.
const (
	AttributeToxicity         = "TOXICITY"
	AttributeSevereToxicity   = "SEVERE_TOXICITY"
	AttributeIdentityAttack   = "IDENTITY_ATTACK"
	AttributeThreat           = "THREAT"
	AttributeSexuallyExplicit = "SEXUALLY_EXPLICIT"
)

// RequestedAttributes is the fixed attribute set requested for every message.
var RequestedAttributes = []string{
	AttributeSevereToxicity,
	AttributeIdentityAttack,
	AttributeThreat,
	AttributeToxicity,
	AttributeSexuallyExplicit,
}

// CampaignAttributes are the attributes that contribute points to an
// entity's harassment score when they individually cross the threshold.
var CampaignAttributes = []string{
	AttributeSevereToxicity,
	AttributeToxicity,
	AttributeIdentityAttack,
	AttributeThreat,
}

// ScoreVector maps attribute names to scores in [0,1] for a single message.
// It is produced per message and not retained past the ingest call.
type ScoreVector map[string]float64

// AnyAtLeast reports whether any attribute meets or exceeds the threshold.
func (v ScoreVector) AnyAtLeast(threshold float64) bool {
	for _, score := range v {
		if score >= threshold {
			return true
		}
	}
	return false
}

// CountAtLeast returns how many of the given attributes individually meet or
// exceed the threshold. Missing attributes count as zero.
func (v ScoreVector) CountAtLeast(attributes []string, threshold float64) int {
	count := 0
	for _, attr := range attributes {
		if v[attr] >= threshold {
			count++
		}
	}
	return count
}

// Scorer evaluates raw message text against an external toxicity-analysis
// service. Implementations must not return partial score vectors on error.
type Scorer interface {
	Score(ctx context.Context, text string) (ScoreVector, error)
}
