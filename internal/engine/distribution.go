package engine

// SalesStreamDistribution gives the split percentages used to route a
// virgin-sales write across domestic/import(/export) (§4.4.1). Ratios
// are plain 0..1 fractions, not ×100 percentages.
type SalesStreamDistribution struct {
	PctDomestic float64
	PctImport   float64
	PctExport   float64
}

// DefaultDistribution builds a distribution from the substance's
// current enabled-stream state and current stored stream amounts, per
// §4.4.1: only enabled streams receive mass; if all enabled streams are
// zero but multiple are enabled, split equally; otherwise proportional
// to current values. Exports are excluded by default to match treaty
// attribution.
func DefaultDistribution(state *SimulationState, app, substance string, p *Parameterization) SalesStreamDistribution {
	return distributionFor(state, app, substance, p, false)
}

// DistributionWithExports is DefaultDistribution but optionally
// includes the export stream in the split (§4.4.1: "may be included
// optionally").
func DistributionWithExports(state *SimulationState, app, substance string, p *Parameterization) SalesStreamDistribution {
	return distributionFor(state, app, substance, p, true)
}

func distributionFor(state *SimulationState, app, substance string, p *Parameterization, includeExport bool) SalesStreamDistribution {
	type candidate struct {
		name    string
		enabled bool
	}
	candidates := []candidate{
		{StreamDomestic, p.IsEnabled(StreamDomestic)},
		{StreamImport, p.IsEnabled(StreamImport)},
	}
	if includeExport {
		candidates = append(candidates, candidate{StreamExport, p.IsEnabled(StreamExport)})
	}

	enabledCount := 0
	for _, c := range candidates {
		if c.enabled {
			enabledCount++
		}
	}
	if enabledCount == 0 {
		// Nothing enabled: fall back to domestic-only so a write does
		// not silently vanish; the write itself will still fail
		// enable-gating downstream if domestic is not enabled either.
		return SalesStreamDistribution{PctDomestic: 1}
	}

	// Proportional split uses the stream's actual current stored
	// amount (§4.4.1 "proportional to current values"), not
	// lastSpecifiedValue, since recharge/recycling can move the stored
	// amount away from what was last written.
	current := map[string]float64{
		StreamDomestic: 0,
		StreamImport:   0,
		StreamExport:   0,
	}
	total := 0.0
	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		current[c.name] = state.rawStream(app, substance, c.name).Float64()
		total += current[c.name]
	}

	dist := SalesStreamDistribution{}
	if total == 0 {
		share := 1.0 / float64(enabledCount)
		for _, c := range candidates {
			if !c.enabled {
				continue
			}
			assign(&dist, c.name, share)
		}
		return dist
	}

	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		assign(&dist, c.name, current[c.name]/total)
	}
	return dist
}

func assign(dist *SalesStreamDistribution, stream string, share float64) {
	switch stream {
	case StreamDomestic:
		dist.PctDomestic = share
	case StreamImport:
		dist.PctImport = share
	case StreamExport:
		dist.PctExport = share
	}
}
