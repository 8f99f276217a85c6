package background

import (
	"fmt"
	"math"
)

// flowWeight is the expected relative modulation of a tower at phi.
func flowWeight(phi float64, flow FlowResult) float64 {
	return 1 + 2*flow.V2*math.Cos(2*(phi-flow.Psi2))
}

// computeUEDensity averages, per layer and eta ring, the flow corrected
// energy of the towers that are neither masked nor close to a seed. It
// returns the number of towers used over the whole calorimeter.
func computeUEDensity(ctx *EventContext, flow FlowResult, ue *[NLayers][]float64) int {
	nTowers := 0
	for _, layer := range Layers {
		for eta := 0; eta < ctx.Grid.EtaBins(); eta++ {
			totalE := 0.0
			totalTowers := 0
			for phi := 0; phi < ctx.Grid.PhiBins(); phi++ {
				if ctx.binExcluded(layer, eta, phi) {
					if ctx.Verbosity > 10 {
						message := fmt.Sprintf("tower in layer %d at eta / phi bin = %d / %d with E = %g excluded",
							layer, eta, phi, ctx.Grid.Energy(layer, eta, phi))
						logger.Info(message, "density")
					}
					continue
				}
				thisPhi := ctx.Geometry.PhiCenter(phi)
				totalE += ctx.Grid.Energy(layer, eta, phi) / flowWeight(thisPhi, flow)
				totalTowers++
				nTowers++
			}

			if totalTowers > 0 {
				ue[layer][eta] = totalE / float64(totalTowers)
			} else {
				if ctx.Verbosity > 0 {
					message := fmt.Sprintf("WARNING, no towers in layer %d / eta %d, setting UE density to 0", layer, eta)
					logger.Warn(message, "density")
				}
				ue[layer][eta] = 0
			}

			if ctx.Verbosity > 3 {
				etaLow, etaHigh := ctx.Geometry.EtaBounds(eta)
				phiLow, phiHigh := ctx.Geometry.PhiBounds(0)
				area := float64(totalTowers) * (etaHigh - etaLow) * (phiHigh - phiLow)
				message := fmt.Sprintf("at layer / eta index ( eta range ) = %d / %d ( %g - %g ) , total E / total Ntower / total area = %g / %d / %g , UE per tower = %g",
					layer, eta, etaLow, etaHigh, totalE, totalTowers, area, ue[layer][eta])
				logger.Info(message, "density")
			}
		}
	}
	return nTowers
}
