package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	"photo-album/internal/logging"
	"photo-album/internal/metrics"
)

// Dim is the dimensionality of the shared image/text embedding space.
const Dim = 512

const (
	imageSize     = 224
	textSeqLen    = 77
	visualModel   = "visual.onnx"
	textualModel  = "textual.onnx"
	tokenizerFile = "tokenizer.json"
	runtimeLib    = "libonnxruntime.so"
)

// ErrUnavailable indicates the embedding model could not be loaded. The
// load is attempted once; after a failure every call returns this error
// without touching the model files again.
var ErrUnavailable = errors.New("embedding model unavailable")

// IsUnavailable reports whether err means the model cannot serve at all,
// as opposed to one input being unprocessable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Service computes 512-dimensional embeddings for images and text with a
// two-tower model. The model loads lazily on first use so startup does
// not pay for it, and processing degrades instead of failing when the
// model directory is absent.
type Service struct {
	modelDir string

	loadOnce sync.Once
	loadErr  error

	// Sessions and their reusable tensors are not safe for concurrent
	// Run; mu serializes inference.
	mu        sync.Mutex
	visual    *ort.AdvancedSession
	textual   *ort.AdvancedSession
	tokenizer *tokenizers.Tokenizer

	pixels        *ort.Tensor[float32]
	imageOut      *ort.Tensor[float32]
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	textOut       *ort.Tensor[float32]

	closeOnce sync.Once
}

func NewService(modelDir string) *Service {
	return &Service{modelDir: modelDir}
}

// EmbedImage returns the normalized embedding for the image at path.
func (s *Service) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	start := time.Now()
	if err := s.ensureLoaded(); err != nil {
		metrics.EmbeddingsTotal.WithLabelValues("image", "unavailable").Inc()
		return nil, err
	}

	pixels, err := loadPixels(path, imageSize)
	if err != nil {
		metrics.EmbeddingsTotal.WithLabelValues("image", "error").Inc()
		return nil, fmt.Errorf("prepare image %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.pixels.GetData(), pixels)
	if err := s.visual.Run(); err != nil {
		metrics.EmbeddingsTotal.WithLabelValues("image", "error").Inc()
		return nil, fmt.Errorf("image inference: %w", err)
	}

	vec := make([]float32, Dim)
	copy(vec, s.imageOut.GetData())
	normalize(vec)

	metrics.EmbeddingsTotal.WithLabelValues("image", "success").Inc()
	metrics.EmbeddingDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	return vec, nil
}

// EmbedText returns the normalized embedding for a text query.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	if err := s.ensureLoaded(); err != nil {
		metrics.EmbeddingsTotal.WithLabelValues("text", "unavailable").Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, _ := s.tokenizer.Encode(text, true)
	inputIDs := s.inputIDs.GetData()
	mask := s.attentionMask.GetData()
	for i := 0; i < textSeqLen; i++ {
		inputIDs[i] = 0
		mask[i] = 0
	}
	for i := 0; i < len(ids) && i < textSeqLen; i++ {
		inputIDs[i] = int64(ids[i])
		mask[i] = 1
	}

	if err := s.textual.Run(); err != nil {
		metrics.EmbeddingsTotal.WithLabelValues("text", "error").Inc()
		return nil, fmt.Errorf("text inference: %w", err)
	}

	vec := make([]float32, Dim)
	copy(vec, s.textOut.GetData())
	normalize(vec)

	metrics.EmbeddingsTotal.WithLabelValues("text", "success").Inc()
	metrics.EmbeddingDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	return vec, nil
}

func (s *Service) ensureLoaded() error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load()
		if s.loadErr != nil {
			metrics.EmbeddingModelLoaded.Set(-1)
			logging.Error("Embedding model load failed, search falls back to text matching: %v", s.loadErr)
		} else {
			metrics.EmbeddingModelLoaded.Set(1)
			logging.Info("Embedding model loaded from %s", s.modelDir)
		}
	})
	return s.loadErr
}

func (s *Service) load() error {
	if s.modelDir == "" {
		return fmt.Errorf("%w: no model directory configured", ErrUnavailable)
	}
	for _, name := range []string{visualModel, textualModel, tokenizerFile} {
		if _, err := os.Stat(filepath.Join(s.modelDir, name)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
		}
	}

	libPath := os.Getenv("ONNXRUNTIME_LIB")
	if libPath == "" {
		libPath = filepath.Join(s.modelDir, runtimeLib)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: init runtime: %v", ErrUnavailable, err)
	}

	var err error
	s.pixels, err = ort.NewTensor(ort.NewShape(1, 3, imageSize, imageSize),
		make([]float32, 3*imageSize*imageSize))
	if err != nil {
		return fmt.Errorf("%w: create pixel tensor: %v", ErrUnavailable, err)
	}
	s.imageOut, err = ort.NewTensor(ort.NewShape(1, Dim), make([]float32, Dim))
	if err != nil {
		return fmt.Errorf("%w: create image output tensor: %v", ErrUnavailable, err)
	}
	s.inputIDs, err = ort.NewTensor(ort.NewShape(1, textSeqLen), make([]int64, textSeqLen))
	if err != nil {
		return fmt.Errorf("%w: create input tensor: %v", ErrUnavailable, err)
	}
	s.attentionMask, err = ort.NewTensor(ort.NewShape(1, textSeqLen), make([]int64, textSeqLen))
	if err != nil {
		return fmt.Errorf("%w: create attention tensor: %v", ErrUnavailable, err)
	}
	s.textOut, err = ort.NewTensor(ort.NewShape(1, Dim), make([]float32, Dim))
	if err != nil {
		return fmt.Errorf("%w: create text output tensor: %v", ErrUnavailable, err)
	}

	s.visual, err = ort.NewAdvancedSession(
		filepath.Join(s.modelDir, visualModel),
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{s.pixels},
		[]ort.ArbitraryTensor{s.imageOut},
		nil,
	)
	if err != nil {
		return fmt.Errorf("%w: create visual session: %v", ErrUnavailable, err)
	}

	s.textual, err = ort.NewAdvancedSession(
		filepath.Join(s.modelDir, textualModel),
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{s.inputIDs, s.attentionMask},
		[]ort.ArbitraryTensor{s.textOut},
		nil,
	)
	if err != nil {
		return fmt.Errorf("%w: create textual session: %v", ErrUnavailable, err)
	}

	s.tokenizer, err = tokenizers.FromFile(filepath.Join(s.modelDir, tokenizerFile))
	if err != nil {
		return fmt.Errorf("%w: load tokenizer: %v", ErrUnavailable, err)
	}

	return nil
}

// Close releases the model sessions and tensors. Safe to call when the
// model never loaded.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.loadErr != nil || s.visual == nil {
			return
		}
		s.visual.Destroy()
		s.textual.Destroy()
		s.tokenizer.Close()
		s.pixels.Destroy()
		s.imageOut.Destroy()
		s.inputIDs.Destroy()
		s.attentionMask.Destroy()
		s.textOut.Destroy()
		ort.DestroyEnvironment()
		metrics.EmbeddingModelLoaded.Set(0)
	})
}
