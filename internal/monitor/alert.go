package monitor

import (
	"fmt"
	"strings"

	"spreadwatch/internal/spread"
)

// alertGate holds the last emitted spread of one instrument.
//
// An alert fires only when |spread| reaches the threshold and exceeds the magnitude of the
// last emitted spread, in either direction. The memory is never reset while the monitor
// runs, so a later excursion must beat the previous peak to alert again.
type alertGate struct {
	threshold   float64
	lastEmitted float64
}

func newAlertGate(threshold float64) *alertGate {
	return &alertGate{threshold: threshold}
}

// Check reports whether s fires and, if so, remembers it.
func (g *alertGate) Check(s float64) bool {
	m := spread.Magnitude(s)
	if m < g.threshold || m <= spread.Magnitude(g.lastEmitted) {
		return false
	}
	g.lastEmitted = s
	return true
}

// LastEmitted returns the spread of the most recent alert, zero if none fired yet.
func (g *alertGate) LastEmitted() float64 {
	return g.lastEmitted
}

// FormatAlert renders the human-readable notification for a.
func FormatAlert(a Alert) string {
	marker, trade := "🔴", fmt.Sprintf("Sell on %s / Buy on %s", label(a.SourceA), label(a.SourceB))
	if a.Direction == spread.BPremium {
		marker, trade = "🟢", fmt.Sprintf("Buy on %s / Sell on %s", label(a.SourceA), label(a.SourceB))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s Arbitrage Alert\n", marker, a.Instrument)
	fmt.Fprintf(&b, "Spread: %.2f%%\n", a.SpreadPercent)
	fmt.Fprintf(&b, "%s: %.5f\n", label(a.SourceA), a.PriceA)
	fmt.Fprintf(&b, "%s: %.5f\n", label(a.SourceB), a.PriceB)
	fmt.Fprintf(&b, "Trade: %s", trade)
	return b.String()
}

func label(source string) string {
	if source == "" {
		return "?"
	}
	return strings.ToUpper(source)
}
