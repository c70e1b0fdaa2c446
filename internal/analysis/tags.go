package analysis

import "strings"

const maxTags = 10

// tagCategories maps a category tag to the description keywords that
// imply it. A keyword match emits both the keyword and its category.
var tagCategories = map[string][]string{
	"water":     {"water", "pool", "swimming", "lake", "ocean", "sea", "river"},
	"people":    {"person", "people", "man", "woman", "child", "boy", "girl"},
	"animals":   {"dog", "cat", "bird", "animal", "pet"},
	"nature":    {"tree", "grass", "flower", "garden", "park", "forest"},
	"buildings": {"house", "building", "home", "room", "kitchen", "bathroom"},
	"vehicles":  {"car", "truck", "bike", "bicycle", "vehicle"},
	"sports":    {"ball", "game", "sport", "playing"},
	"food":      {"food", "eating", "meal", "kitchen"},
	"outdoor":   {"outdoor", "outside", "sky", "cloud", "sun"},
	"indoor":    {"indoor", "inside", "room"},
}

// Fixed iteration order for tagCategories; map iteration would make
// tag output nondeterministic.
var categoryOrder = []string{
	"water", "people", "animals", "nature", "buildings",
	"vehicles", "sports", "food", "outdoor", "indoor",
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true,
	"by": true, "from": true, "up": true, "about": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "between": true, "among": true,
	"under": true, "over": true,
}

// ExtractTags derives searchable tags from a generated description.
// Matched vocabulary keywords come first with their categories, then up
// to three remaining significant words, capped at maxTags total.
func ExtractTags(description string) []string {
	if description == "" {
		return nil
	}

	lower := strings.ToLower(description)
	var tags []string
	seen := make(map[string]bool)

	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, category := range categoryOrder {
		matched := false
		for _, keyword := range tagCategories[category] {
			if strings.Contains(lower, keyword) {
				add(keyword)
				matched = true
			}
		}
		if matched {
			add(category)
		}
	}

	significant := 0
	for _, word := range strings.Fields(lower) {
		if significant >= 3 {
			break
		}
		if len(word) > 3 && !stopWords[word] && !seen[word] {
			add(word)
			significant++
		}
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}
