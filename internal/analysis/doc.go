// Package analysis generates descriptions, tags and confidence scores
// for images through an ordered chain of backends: a local model-backed
// backend, a hosted captioning API, and a geometry heuristic that always
// succeeds. The first backend to produce a result wins; backends that
// cannot serve at all (missing model, missing token) are skipped rather
// than failing the image.
package analysis
