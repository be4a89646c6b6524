package balance

// Trend compares a token balance between the oldest and newest snapshots.
type Trend struct {
	Chain         string
	TokenSymbol   string
	Current       float64
	Previous      float64
	Change        float64
	ChangePercent float64
	Direction     string // increasing, decreasing, stable
}

// Trends compares the latest snapshot with the oldest one still kept.
// It returns nil until two snapshots exist.
func (c *Checker) Trends() []Trend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) < 2 {
		return nil
	}

	oldest := make(map[string]float64)
	for _, b := range c.history[0].Balances {
		oldest[b.CooldownKey()] = b.Balance
	}

	var out []Trend
	for _, b := range c.history[len(c.history)-1].Balances {
		prev, ok := oldest[b.CooldownKey()]
		if !ok {
			continue
		}
		t := Trend{
			Chain:       b.Chain,
			TokenSymbol: b.TokenSymbol,
			Current:     b.Balance,
			Previous:    prev,
			Change:      b.Balance - prev,
			Direction:   "stable",
		}
		if prev > 0 {
			t.ChangePercent = t.Change / prev * 100
		}
		switch {
		case t.Change > 0:
			t.Direction = "increasing"
		case t.Change < 0:
			t.Direction = "decreasing"
		}
		out = append(out, t)
	}
	return out
}
