package strategy

import (
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
)

// Names of the predefined strategies.
const (
	SimplePeaks      = "simple_peaks"
	OverlappingPeaks = "overlapping_peaks"
	ComplexPeaks     = "complex_peaks"
	HighPrecision    = "high_precision"
)

// PredefinedStrategies returns the built-in strategies in a stable order.
func PredefinedStrategies() []model.Strategy {
	return []model.Strategy{
		{
			Name:                  SimplePeaks,
			Version:               Version,
			PeakDetection:         detect.Simple.String(),
			OverlapProcessing:     overlap.None.String(),
			FittingMethod:         fit.MultiPeak.String(),
			OptimizationAlgorithm: fit.LevenbergMarquardt.String(),
		},
		{
			Name:                  OverlappingPeaks,
			Version:               Version,
			PeakDetection:         detect.Simple.String(),
			OverlapProcessing:     overlap.FBF.String(),
			FittingMethod:         fit.MultiPeak.String(),
			OptimizationAlgorithm: fit.LevenbergMarquardt.String(),
		},
		{
			Name:                  ComplexPeaks,
			Version:               Version,
			PeakDetection:         detect.CWT.String(),
			OverlapProcessing:     overlap.ExtremeOverlap.String(),
			FittingMethod:         fit.MultiPeak.String(),
			OptimizationAlgorithm: fit.SimulatedAnnealing.String(),
			AdvancedAlgorithm:     EMGAlgorithm,
		},
		{
			Name:                  HighPrecision,
			Version:               Version,
			PeakDetection:         detect.Simple.String(),
			OverlapProcessing:     overlap.SharpenCWT.String(),
			FittingMethod:         fit.GaussianFit.String(),
			OptimizationAlgorithm: fit.LevenbergMarquardt.String(),
			AdvancedAlgorithm:     BiGaussianRefit,
			PostProcessing:        QualityValidation,
			Config:                map[string]any{KeyQualityThreshold: 0.85},
		},
	}
}
