// Package embedding computes 512-dimensional vector embeddings for
// images and text queries in a shared space, backed by an ONNX two-tower
// model. The model loads lazily on first use and a load failure is
// cached: callers get ErrUnavailable immediately instead of retrying a
// broken model, and search degrades to plain text matching.
package embedding
