package analysis

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	heuristicConfidence  = 0.3
	heuristicDescription = "A digital photograph"

	// Aspect ratio beyond which an image counts as landscape or
	// portrait rather than square.
	aspectThreshold = 1.3

	highResolutionEdge = 1920
)

// Heuristic is the terminal backend. It never needs a model or a
// network: tags come from the filename and basic image geometry, with a
// fixed low confidence so model-backed results always rank above it.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) Analyze(_ context.Context, path string) (*Result, error) {
	tags := []string{"photo"}

	filename := strings.ToLower(filepath.Base(path))
	for _, marker := range []string{"img", "photo", "pic"} {
		if strings.Contains(filename, marker) {
			tags = append(tags, "image")
			break
		}
	}

	// Geometry classification is best effort. An undecodable file still
	// gets the base tags.
	if img, err := imaging.Open(path); err == nil {
		bounds := img.Bounds()
		width, height := float64(bounds.Dx()), float64(bounds.Dy())
		switch {
		case width > height*aspectThreshold:
			tags = append(tags, "landscape")
		case height > width*aspectThreshold:
			tags = append(tags, "portrait")
		default:
			tags = append(tags, "square")
		}
		if bounds.Dx() >= highResolutionEdge || bounds.Dy() >= highResolutionEdge {
			tags = append(tags, "high_resolution")
		}
	}

	return &Result{
		Description: heuristicDescription,
		Tags:        tags,
		Confidence:  heuristicConfidence,
	}, nil
}
