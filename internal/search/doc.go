// Package search answers media queries in two modes: plain text
// matching over titles, descriptions and AI fields, and a hybrid AI mode
// that prefers exact matches against analysis output and falls back to
// vector similarity with an adaptive distance threshold. A query never
// returns an empty vector page while scored candidates exist, and a
// missing embedding model degrades the AI mode to text matching.
package search
