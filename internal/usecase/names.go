package usecase

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Nouns for display name generation
var nouns = []string{
	// Animals
	"Otter", "Badger", "Heron", "Lynx", "Falcon", "Marmot", "Gecko", "Walrus",
	"Panda", "Koala", "Capybara", "Lemur", "Narwhal", "Puffin", "Wombat", "Yak",
	"Tapir", "Axolotl", "Pangolin", "Ibex", "Raccoon", "Hedgehog", "Beaver", "Moose",

	// Kitchen & Household
	"Teapot", "Kettle", "Toaster", "Spatula", "Colander", "Whisk", "Ladle", "Skillet",
	"Broom", "Bucket", "Lamp", "Cushion", "Blanket", "Stool", "Drawer", "Doormat",

	// Snacks
	"Pretzel", "Waffle", "Dumpling", "Noodle", "Biscuit", "Muffin", "Bagel", "Taco",
	"Nacho", "Croissant", "Pancake", "Donut", "Crumpet", "Scone", "Churro", "Mochi",

	// Estimation things
	"Story", "Ticket", "Sprint", "Backlog", "Spike", "Epic", "Standup", "Burndown",
}

// Adjectives for display name generation
var adjectives = []string{
	// Moods
	"Sleepy", "Grumpy", "Cheerful", "Curious", "Anxious", "Jolly", "Brave", "Shy",
	"Sneaky", "Bouncy", "Calm", "Restless", "Giddy", "Stoic", "Sassy", "Zen",

	// Traits
	"Fuzzy", "Shiny", "Wobbly", "Crunchy", "Spicy", "Soggy", "Dusty", "Sparkly",
	"Tiny", "Mighty", "Swift", "Lazy", "Clever", "Quirky", "Nimble", "Chunky",

	// Estimating
	"Optimistic", "Pessimistic", "Overcommitted", "Blocked", "Agile", "Refactored",
	"Caffeinated", "Undecided", "Confident", "Hesitant", "Ambitious", "Pragmatic",
}

// NameGenerator generates display names for participants that join without one
type NameGenerator struct {
	mu       sync.RWMutex
	existing map[string]bool
	rng      *rand.Rand
}

// NewNameGenerator creates a new NameGenerator
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{
		existing: make(map[string]bool),
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
}

// Generate creates a display name not currently in use. Names in taken are
// treated as in use too, so a client can pass the room's current roster.
func (ng *NameGenerator) Generate(taken ...string) string {
	ng.mu.Lock()
	defer ng.mu.Unlock()

	inUse := make(map[string]bool, len(taken))
	for _, t := range taken {
		inUse[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var name string
	maxAttempts := 100

	for i := 0; i < maxAttempts; i++ {
		adj := adjectives[ng.rng.Intn(len(adjectives))]
		noun := nouns[ng.rng.Intn(len(nouns))]
		name = fmt.Sprintf("%s %s", adj, noun)

		if !ng.existing[name] && !inUse[strings.ToLower(name)] {
			break
		}

		// Add suffix if still duplicate after max attempts
		if i == maxAttempts-1 {
			name = fmt.Sprintf("%s %d", name, ng.rng.Intn(999))
		}
	}

	ng.existing[name] = true
	return name
}

// Reserve marks a name chosen by the participant as in use
func (ng *NameGenerator) Reserve(name string) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	ng.existing[name] = true
}

// Release removes a name from the active set
func (ng *NameGenerator) Release(name string) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	delete(ng.existing, name)
}

// ActiveCount returns the number of active names
func (ng *NameGenerator) ActiveCount() int {
	ng.mu.RLock()
	defer ng.mu.RUnlock()
	return len(ng.existing)
}

// SanitizeName trims a user-supplied display name, strips control characters
// and caps its length. It returns "" when nothing printable is left.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	// Limit length to 32 characters
	if runes := []rune(name); len(runes) > 32 {
		name = strings.TrimSpace(string(runes[:32]))
	}
	return name
}
