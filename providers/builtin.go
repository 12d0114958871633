package providers

import "github.com/goliatone/go-wallets/core"

// Factory builds a detector with its default configuration.
type Factory func() (core.Detector, error)

// Build runs every factory and stops on the first error.
func Build(factories ...Factory) ([]core.Detector, error) {
	detectors := make([]core.Detector, 0, len(factories))
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		detector, err := factory()
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, detector)
	}
	return detectors, nil
}
