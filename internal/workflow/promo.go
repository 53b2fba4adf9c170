package workflow

import (
	"math/rand"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// DefaultPromoTexts is the pool used when the operator has not configured
// their own lines.
var DefaultPromoTexts = []string{
	"This summary was generated with VideoSum AI",
	"Generated chapter breakdown using www.videosum.ai",
	"Want to summarize other videos? Search for VideoSum AI on Google",
	"This breakdown was created by VideoSum - AI-powered video analysis",
}

// PromoConfig controls promo splicing. With AllowNone off a promo is always
// attached; with it on, SkipProbability is the chance of omitting one.
type PromoConfig struct {
	Enabled         bool
	AllowNone       bool
	SkipProbability float64
}

// SplicePromo joins the promo line and the comment with a blank line. An
// empty promo or the "none" position returns the comment unchanged.
func SplicePromo(comment, promo, position string) string {
	if promo == "" || position == types.PromoNone {
		return comment
	}
	if position == types.PromoTop {
		return promo + "\n\n" + comment
	}
	return comment + "\n\n" + promo
}

// pickPromo chooses a random promo line and position from the pool, or
// none when promos are disabled or the skip roll hits.
func pickPromo(cfg PromoConfig, pool []string, rng *rand.Rand) (text, position string) {
	if !cfg.Enabled || len(pool) == 0 {
		return "", types.PromoNone
	}
	if cfg.AllowNone && rng.Float64() < cfg.SkipProbability {
		return "", types.PromoNone
	}
	text = pool[rng.Intn(len(pool))]
	if rng.Intn(2) == 0 {
		position = types.PromoTop
	} else {
		position = types.PromoBottom
	}
	return text, position
}
