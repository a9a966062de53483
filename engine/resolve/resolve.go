// Package resolve maps NPC names typed by the player to NPC IDs.
package resolve

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// FuzzyThreshold is the minimum Jaro-Winkler similarity for a misspelled
// name to resolve.
const FuzzyThreshold = 0.85

// AmbiguityError indicates multiple NPCs matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("who do you mean by %q? (%s)", e.Name, names)
}

// NotFoundError indicates no NPC matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("there is nobody called %q here", e.Name)
}

// NPC resolves name to an NPC ID. It tries, in order: the exact ID, the
// display name or one word of it (case-insensitive), the ID with spaces
// for underscores, and finally the closest fuzzy match.
func NPC(content state.Content, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &NotFoundError{Name: name}
	}

	// 1. Exact ID match.
	if _, ok := content.NPC(name); ok {
		return name, nil
	}

	nameLower := strings.ToLower(name)
	npcs := content.NPCs()

	// 2. Name, name word, or normalized ID.
	var matches []string
	for _, npc := range npcs {
		if matchesName(npc, nameLower) {
			matches = append(matches, npc.ID)
		}
	}

	// 3. Fuzzy.
	if len(matches) == 0 {
		matches = fuzzy(npcs, nameLower)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

// matchesName checks if an NPC's name or ID matches the query (case-insensitive).
// Supports exact match, word-based partial match, and underscore normalization.
func matchesName(npc types.NPCDef, nameLower string) bool {
	if npc.Name != "" {
		npcNameLower := strings.ToLower(npc.Name)
		if npcNameLower == nameLower {
			return true
		}
		// "smith" matches "Old Smith".
		for _, word := range strings.Fields(npcNameLower) {
			if word == nameLower {
				return true
			}
		}
	}
	idLower := strings.ToLower(npc.ID)
	if idLower == nameLower {
		return true
	}
	// "old smith" matches ID "old_smith".
	return strings.ReplaceAll(nameLower, " ", "_") == idLower
}

// fuzzy returns the NPCs whose best similarity is the highest score at or
// above FuzzyThreshold. More than one result means a tie.
func fuzzy(npcs []types.NPCDef, nameLower string) []string {
	var best []string
	bestScore := FuzzyThreshold

	for _, npc := range npcs {
		score := similarity(nameLower, npc)
		switch {
		case score > bestScore:
			best = []string{npc.ID}
			bestScore = score
		case score == bestScore && score >= FuzzyThreshold:
			best = append(best, npc.ID)
		}
	}
	return best
}

// similarity is the best Jaro-Winkler score between the query and the NPC's
// ID, full name, or any single word of its name.
func similarity(nameLower string, npc types.NPCDef) float64 {
	candidates := []string{strings.ToLower(npc.ID)}
	if npc.Name != "" {
		full := strings.ToLower(npc.Name)
		candidates = append(candidates, full)
		candidates = append(candidates, strings.Fields(full)...)
	}

	var score float64
	for _, c := range candidates {
		if s := matchr.JaroWinkler(nameLower, c, false); s > score {
			score = s
		}
	}
	return score
}
