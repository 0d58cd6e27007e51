package harness

// TraceEvent records one scenario step's outcome.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	At     uint64 `json:"at"`
	Invoke string `json:"invoke"`
	Caller string `json:"caller,omitempty"`

	// Error is the fault code for failed steps.
	Error string `json:"error,omitempty"`

	// Attributes are the receipt attributes of successful steps.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Instructions are the rendered host instructions of successful steps.
	Instructions []map[string]any `json:"instructions,omitempty"`
}

// FinalState captures the post-run world for golden comparison.
type FinalState struct {
	// Positions maps position keys to their recorded fields.
	Positions map[string]map[string]any `json:"positions"`

	// Balances maps principals to denom balances, fakes included.
	Balances map[string]map[string]uint64 `json:"balances"`
}

// Result is a completed scenario run.
type Result struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        FinalState   `json:"final"`
}

// toCanonicalMap converts the result for canonical JSON serialization.
func (r *Result) toCanonicalMap() map[string]any {
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		m := map[string]any{
			"seq":    ev.Seq,
			"at":     ev.At,
			"invoke": ev.Invoke,
		}
		if ev.Caller != "" {
			m["caller"] = ev.Caller
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if len(ev.Attributes) > 0 {
			attrs := make(map[string]any, len(ev.Attributes))
			for k, v := range ev.Attributes {
				attrs[k] = v
			}
			m["attributes"] = attrs
		}
		if len(ev.Instructions) > 0 {
			insts := make([]any, len(ev.Instructions))
			for j, in := range ev.Instructions {
				insts[j] = in
			}
			m["instructions"] = insts
		}
		trace[i] = m
	}

	positions := make(map[string]any, len(r.Final.Positions))
	for k, fields := range r.Final.Positions {
		positions[k] = fields
	}
	balances := make(map[string]any, len(r.Final.Balances))
	for holder, denoms := range r.Final.Balances {
		dm := make(map[string]any, len(denoms))
		for denom, amount := range denoms {
			dm[denom] = amount
		}
		balances[holder] = dm
	}

	return map[string]any{
		"scenario_name": r.ScenarioName,
		"trace":         trace,
		"final": map[string]any{
			"positions": positions,
			"balances":  balances,
		},
	}
}
