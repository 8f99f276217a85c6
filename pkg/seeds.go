package background

import (
	"fmt"
	"maps"
	"slices"
)

// SeedJetMinPt is the pT floor below which raw jets are not examined for D.
const SeedJetMinPt = 5.0

// SeedRadius is the dR around a seed whose towers are excluded.
const SeedRadius = 0.4

type Seed struct {
	Eta float64
	Phi float64
}

// SeedList keeps insertion order; it is cleared, not reallocated, between
// events.
type SeedList struct {
	seeds []Seed
}

func (l *SeedList) Reset() {
	l.seeds = l.seeds[:0]
}

func (l *SeedList) Add(eta float64, phi float64) {
	l.seeds = append(l.seeds, Seed{Eta: eta, Phi: phi})
}

func (l *SeedList) Len() int {
	return len(l.seeds)
}

func (l *SeedList) Seeds() []Seed {
	return slices.Clone(l.seeds)
}

// Near reports whether (eta, phi) lies within SeedRadius of any seed.
func (l *SeedList) Near(eta float64, phi float64) bool {
	for _, seed := range l.seeds {
		if DeltaR(eta, phi, seed.Eta, seed.Phi) < SeedRadius {
			return true
		}
	}
	return false
}

// SeedDispersion computes D = max / mean of the constituent ET summed per
// (eta, phi) bin, skipping masked constituents. The second return value is
// the number of populated bins; D is 0 when there are none.
func SeedDispersion(jet *Jet, sources towerSources, verbosity int) (float64, int) {
	etSum := make(map[int]float64)
	for _, comp := range jet.Constituents {
		sample, err := sources.constituent(comp)
		if err != nil {
			if verbosity > 0 {
				logger.Warn(fmt.Sprintf("jet %d: skipping constituent: %v", jet.ID, err), "seeds")
			}
			continue
		}
		if sample.Masked {
			if verbosity > 4 {
				message := fmt.Sprintf("--> --> Skipping constituent in layer %d at ieta / iphi = %d / %d due to masking",
					comp.Source, sample.EtaBin, sample.PhiBin)
				logger.Info(message, "seeds")
			}
			continue
		}
		key := 1000*sample.EtaBin + sample.PhiBin
		etSum[key] += sample.ET()
		if verbosity > 4 {
			message := fmt.Sprintf("--> --> constituent in layer %d at ieta / iphi = %d / %d, key = %d, ET = %g, sum = %g",
				comp.Source, sample.EtaBin, sample.PhiBin, key, sample.ET(), etSum[key])
			logger.Info(message, "seeds")
		}
	}

	if len(etSum) == 0 {
		return 0, 0
	}

	var maxET, sumET float64
	// Sorted keys keep the sum reproducible.
	for _, key := range slices.Sorted(maps.Keys(etSum)) {
		sumET += etSum[key]
		maxET = max(maxET, etSum[key])
	}
	meanET := sumET / float64(len(etSum))
	if meanET == 0 {
		return 0, len(etSum)
	}
	if verbosity > 3 {
		message := fmt.Sprintf("--> jet has < ET > = %g / %d = %g, max-ET = %g, and D = %g",
			sumET, len(etSum), meanET, maxET, maxET/meanET)
		logger.Info(message, "seeds")
	}
	return maxET / meanET, len(etSum)
}

// selectSeedsByD examines the raw R = 0.2 jets. Jets with D above the
// threshold become first iteration seeds.
func selectSeedsByD(jets *JetContainer, sources towerSources, threshold float64, seeds *SeedList, verbosity int) {
	if verbosity > 1 {
		logger.Info("examining possible seeds (1st iteration) ...", "seeds")
	}
	for _, jet := range jets.Jets {
		if jet.Pt < SeedJetMinPt {
			jet.SetProperty(PropSeedD, 0)
			jet.SetProperty(PropSeedItr, 0)
			continue
		}
		if verbosity > 2 {
			message := fmt.Sprintf("possible seed jet with pt / eta / phi = %g / %g / %g, examining constituents...",
				jet.Pt, jet.Eta, jet.Phi)
			logger.Info(message, "seeds")
		}

		d, populated := SeedDispersion(jet, sources, verbosity)
		jet.SetProperty(PropSeedD, d)

		if populated > 0 && d > threshold {
			seeds.Add(jet.Eta, jet.Phi)
			jet.SetProperty(PropSeedItr, 1)
			if verbosity > 1 {
				message := fmt.Sprintf("--> adding seed at eta / phi = %g / %g ( R=0.2 jet with pt = %g, D = %g )",
					jet.Eta, jet.Phi, jet.Pt, d)
				logger.Info(message, "seeds")
			}
			continue
		}
		jet.SetProperty(PropSeedItr, 0)
		if verbosity > 3 {
			message := fmt.Sprintf("--> discarding potential seed at eta / phi = %g / %g ( R=0.2 jet with pt = %g, D = %g )",
				jet.Eta, jet.Phi, jet.Pt, d)
			logger.Info(message, "seeds")
		}
	}
}

// selectSeedsByPt takes the jets whose kinematics were updated by the first
// background subtraction; those above the threshold are second iteration
// seeds.
func selectSeedsByPt(jets *JetContainer, threshold float64, seeds *SeedList, verbosity int) {
	if verbosity > 1 {
		logger.Info("examining possible seeds (2nd iteration) ...", "seeds")
	}
	for _, jet := range jets.Jets {
		if jet.Pt < threshold {
			jet.SetProperty(PropSeedItr, 0)
			continue
		}
		seeds.Add(jet.Eta, jet.Phi)
		jet.SetProperty(PropSeedItr, 2)
		if verbosity > 1 {
			message := fmt.Sprintf("--> adding seed at eta / phi = %g / %g ( R=0.2 jet with pt = %g )",
				jet.Eta, jet.Phi, jet.Pt)
			logger.Info(message, "seeds")
		}
	}
}

func seedJetsNodeName(seedType SeedType, useTowerInfo bool) (string, error) {
	switch seedType {
	case SeedTypeD:
		if useTowerInfo {
			return RawSeedJetsTowerInfoName, nil
		}
		return RawSeedJetsTowerName, nil
	case SeedTypePt:
		if useTowerInfo {
			return SubSeedJetsTowerInfoName, nil
		}
		return SubSeedJetsTowerName, nil
	}
	return "", fmt.Errorf("undefined seed behavior %d: %w", seedType, ErrAbortRun)
}
