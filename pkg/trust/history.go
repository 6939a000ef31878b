package trust

// HistoryPoint is one score sample, evaluated at that event's timestamp.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Score     float64 `json:"score" yaml:"score"`
}

// ComputeHistory replays the engine over every chronological prefix of the
// event list, each evaluated at that prefix's own last event timestamp. The
// result is an honest "score as of then" trend line, one point per event.
//
// This is O(n²) in event count. Fine at the expected tens-to-low-hundreds of
// events per contributor; if that ever grows, the fix is an incremental fold
// that carries the accumulators forward instead of replaying prefixes.
func ComputeHistory(state ContributorState, cfg *Config, now int64) []HistoryPoint {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	sorted := sortedByTime(state.Events)
	if len(sorted) == 0 {
		return []HistoryPoint{{Timestamp: now, Score: cfg.InitialScore}}
	}

	points := make([]HistoryPoint, 0, len(sorted))
	for i := range sorted {
		prefix := ContributorState{
			Contributor:      state.Contributor,
			CreatedAt:        state.CreatedAt,
			Events:           sorted[:i+1],
			ManualAdjustment: state.ManualAdjustment,
		}
		at := sorted[i].Timestamp
		res := Compute(prefix, cfg, at)
		points = append(points, HistoryPoint{Timestamp: at, Score: res.Score})
	}

	return points
}
