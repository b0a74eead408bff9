package auth

import (
	"time"

	"taskboard/internal/model"
)

// TokenTTL is the sliding validity window: a token dies once it has not
// been presented for this long.
const TokenTTL = 5 * 24 * time.Hour

// BillingWindow is how long a subscription payment counts as current.
const BillingWindow = 31 * 24 * time.Hour

// ValidateTokens scans the token list once, compacting it in place:
// tokens idle for ttl or longer are dropped, and if a surviving token's
// digest matches the presented one its timestamp is refreshed to now.
// Expiry is checked before identity, so a match on an expired token
// does not validate. changed reports whether the list must be
// persisted (something was dropped or refreshed).
func ValidateTokens(tokens []model.Token, digest string, now time.Time, ttl time.Duration) (kept []model.Token, valid, changed bool) {
	kept = tokens[:0]
	for _, tk := range tokens {
		if now.Sub(time.Unix(tk.LastUsed, 0)) >= ttl {
			changed = true
			continue
		}
		if !valid && tk.Digest == digest {
			valid = true
			tk.LastUsed = now.Unix()
			changed = true
		}
		kept = append(kept, tk)
	}
	return kept, valid, changed
}

// Billed reports whether the account counts as paid: either billed
// forever, or the last trusted payment is younger than the window.
func Billed(plan model.AccountPlan, now time.Time, window time.Duration) bool {
	if plan.BilledForever {
		return true
	}
	if !plan.PaymentTrusted {
		return false
	}
	return now.Sub(time.Unix(plan.LastPayment, 0)) < window
}
