package sequence

import "time"

// The reset strategy is pure: store adapters call ShouldReset inside their
// row lock so the reset and the following increment are indivisible. Period
// comparison is done in UTC.

// ShouldResetByTime reports whether the counter must reset because the last
// reset happened in an earlier period than now. A sequence that has never
// been reset (LastResetAt == nil) keeps counting until a first reset event
// establishes the baseline.
func ShouldResetByTime(cfg Config, st CounterState, now time.Time) bool {
	if cfg.ResetPeriod == ResetNever || !cfg.ResetPeriod.Valid() {
		return false
	}
	if st.LastResetAt == nil {
		return false
	}
	return !samePeriod(cfg.ResetPeriod, *st.LastResetAt, now)
}

// ShouldResetByLimit reports whether the counter reached the configured limit.
func ShouldResetByLimit(cfg Config, st CounterState) bool {
	return cfg.ResetLimit > 0 && st.Value >= cfg.ResetLimit
}

// ShouldReset combines the time and limit policies.
func ShouldReset(cfg Config, st CounterState, now time.Time) bool {
	return ShouldResetByTime(cfg, st, now) || ShouldResetByLimit(cfg, st)
}

// Reset returns the post-reset state: value 0 with now as the new baseline.
func Reset(now time.Time) CounterState {
	t := now.UTC()
	return CounterState{Value: 0, LastResetAt: &t}
}

func samePeriod(p ResetPeriod, a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	switch p {
	case ResetDaily:
		ay, am, ad := a.Date()
		by, bm, bd := b.Date()
		return ay == by && am == bm && ad == bd
	case ResetMonthly:
		return a.Year() == b.Year() && a.Month() == b.Month()
	case ResetYearly:
		return a.Year() == b.Year()
	default:
		return true
	}
}
