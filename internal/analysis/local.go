package analysis

import (
	"context"
	"fmt"
	"sync"

	"photo-album/internal/embedding"
	"photo-album/internal/logging"
)

// localConfidence is the confidence reported for model-backed captions.
const localConfidence = 0.9

// captionVocabulary is the fixed set of candidate captions the local
// backend scores against an image. The best-matching caption becomes the
// description.
var captionVocabulary = []string{
	"A photograph of people at the beach",
	"A photograph of a person",
	"A photograph of a group of people",
	"A photograph of a child playing",
	"A photograph of a dog",
	"A photograph of a cat",
	"A photograph of a bird",
	"A photograph of trees in a forest",
	"A photograph of flowers in a garden",
	"A photograph of a mountain landscape",
	"A photograph of the ocean",
	"A photograph of a lake",
	"A photograph of a river",
	"A photograph of a swimming pool",
	"A photograph of a house",
	"A photograph of a building",
	"A photograph of a room indoors",
	"A photograph of a kitchen",
	"A photograph of a car",
	"A photograph of a bicycle",
	"A photograph of food on a table",
	"A photograph of people eating a meal",
	"A photograph of people playing a sport",
	"A photograph of a ball game",
	"A photograph of the sky with clouds",
	"A photograph of a sunset",
	"A photograph of a city street",
	"A photograph of a snowy scene",
}

// Local scores an image against a caption vocabulary in the shared
// embedding space and picks the closest caption. It shares the model
// handle with the embedding service, so there is a single load path and
// a single failure mode for both concerns.
type Local struct {
	service *embedding.Service

	once     sync.Once
	vocab    [][]float32
	vocabErr error
}

func NewLocal(service *embedding.Service) *Local {
	return &Local{service: service}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Analyze(ctx context.Context, path string) (*Result, error) {
	if err := l.loadVocabulary(ctx); err != nil {
		return nil, err
	}

	vec, err := l.service.EmbedImage(ctx, path)
	if err != nil {
		if embedding.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, err
	}

	best := 0
	bestScore := float32(-1)
	for i, cv := range l.vocab {
		if score := embedding.Cosine(vec, cv); score > bestScore {
			best, bestScore = i, score
		}
	}

	description := captionVocabulary[best]
	logging.Debug("Local analysis matched %q (score %.3f) for %s", description, bestScore, path)

	return &Result{
		Description: description,
		Tags:        ExtractTags(description),
		Confidence:  localConfidence,
	}, nil
}

// loadVocabulary embeds the caption vocabulary once. A failure is cached
// so a broken model does not get re-probed on every image.
func (l *Local) loadVocabulary(ctx context.Context) error {
	l.once.Do(func() {
		vocab := make([][]float32, len(captionVocabulary))
		for i, caption := range captionVocabulary {
			vec, err := l.service.EmbedText(ctx, caption)
			if err != nil {
				l.vocabErr = fmt.Errorf("%w: embed caption vocabulary: %v", ErrBackendUnavailable, err)
				return
			}
			vocab[i] = vec
		}
		l.vocab = vocab
	})
	return l.vocabErr
}
