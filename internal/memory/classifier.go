package memory

import (
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/easeaico/companion/internal/emotion"
	"github.com/easeaico/companion/internal/types"
)

// Decision is the classifier verdict for a single chat message.
type Decision struct {
	ShouldStore      bool
	Content          string
	Importance       int
	Category         types.MemoryCategory
	Tags             []string
	EmotionalContext types.EmotionalContext
}

// rule assigns category, importance and tags when any of its patterns match.
type rule struct {
	patterns   []*regexp.Regexp
	category   types.MemoryCategory
	importance int
	tags       []string
}

func (r rule) matches(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+expr))
	}
	return out
}

// rules is evaluated top to bottom and the first match wins. Order is part of
// the observable behaviour; do not sort or regroup.
var rules = []rule{
	// Food preferences
	{
		patterns: patterns(
			`i (love|loved|like|liked|enjoy|enjoyed|hate|hated|dislike|disliked) (to )?(eat|eating) (\w+)`,
			`i used to (eat|love|like) (\w+)`,
		),
		category:   types.CategoryPreference,
		importance: 7,
		tags:       []string{"food", "preferences"},
	},
	// Childhood food habits
	{
		patterns: patterns(
			`i (once )?loved (to )?(eat|eating) (\w+)`,
			`when i was (\w+) i (loved|liked|ate) (\w+)`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"food", "childhood", "personal-history"},
	},
	{
		patterns: patterns(
			`my favorite (food|dish|meal) is`,
			`i always (eat|order|cook)`,
		),
		category:   types.CategoryPreference,
		importance: 8,
		tags:       []string{"food", "favorites"},
	},
	// Dietary restrictions
	{
		patterns:   patterns(`i'm (allergic to|can't eat|don't like)`),
		category:   types.CategoryPersonal,
		importance: 9,
		tags:       []string{"health", "food", "restrictions"},
	},
	// Personal history
	{
		patterns: patterns(
			`when i was (young|a kid|little|growing up)`,
			`i used to`,
			`back when i was`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"childhood", "personal-history"},
	},
	{
		patterns: patterns(
			`i once (did|went|tried|experienced)`,
			`i remember when`,
		),
		category:   types.CategoryExperience,
		importance: 7,
		tags:       []string{"memories", "experiences"},
	},
	{
		patterns: patterns(
			`and then i grew up`,
			`but now i`,
			`these days i`,
		),
		category:   types.CategoryPersonal,
		importance: 7,
		tags:       []string{"growth", "change", "personal-development"},
	},
	// Likes and dislikes
	{
		patterns: patterns(
			`i (really )?love`,
			`i'm passionate about`,
			`i enjoy`,
		),
		category:   types.CategoryPreference,
		importance: 7,
		tags:       []string{"likes", "interests"},
	},
	{
		patterns: patterns(
			`i (really )?hate`,
			`i can't stand`,
			`i dislike`,
		),
		category:   types.CategoryPreference,
		importance: 7,
		tags:       []string{"dislikes"},
	},
	// Family and relationships
	{
		patterns: patterns(
			`my (mom|dad|mother|father|parents|family)`,
			`my (brother|sister|sibling)`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"family"},
	},
	{
		patterns:   patterns(`my (friend|friends|boyfriend|girlfriend|partner|spouse|husband|wife)`),
		category:   types.CategoryRelationship,
		importance: 8,
		tags:       []string{"relationships"},
	},
	// Hobbies
	{
		patterns: patterns(
			`i (play|do|practice) (\w+)`,
			`my hobby is`,
			`i'm into`,
		),
		category:   types.CategoryPreference,
		importance: 7,
		tags:       []string{"hobbies", "interests"},
	},
	// Work
	{
		patterns: patterns(
			`i work (as|at|in)`,
			`my job is`,
			`i'm a`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"work", "career"},
	},
	// Personality
	{
		patterns: patterns(
			`i'm (usually|always|often|sometimes)`,
			`i tend to`,
			`i'm the type of person who`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"personality"},
	},
	// Goals
	{
		patterns: patterns(
			`i want to`,
			`my dream is`,
			`i hope to`,
			`someday i`,
		),
		category:   types.CategoryPersonal,
		importance: 7,
		tags:       []string{"goals", "dreams"},
	},
	// Fears
	{
		patterns: patterns(
			`i'm afraid of`,
			`i worry about`,
			`i fear`,
		),
		category:   types.CategoryEmotion,
		importance: 8,
		tags:       []string{"fears", "emotions"},
	},
	// Values
	{
		patterns: patterns(
			`i believe (in|that)`,
			`i think (that )?(\w+) is important`,
		),
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"values", "beliefs"},
	},
}

// check is an always-on test run after the rule table.
type check struct {
	match      func(lower string) bool
	category   types.MemoryCategory
	importance int
	tags       []string
}

var (
	childhoodEatingRe = regexp.MustCompile(`i (once )?loved? to eat|i used to eat`)
	transitionRe      = regexp.MustCompile(`(then|and) i grew up|but now|these days`)
)

var checks = []check{
	// Sweets and tastes
	{
		match: func(lower string) bool {
			return strings.Contains(lower, "raw sugar") ||
				strings.Contains(lower, "sweet") ||
				strings.Contains(lower, "candy")
		},
		category:   types.CategoryPreference,
		importance: 7,
		tags:       []string{"food", "sweets", "childhood", "tastes"},
	},
	// Childhood eating habits
	{
		match:      childhoodEatingRe.MatchString,
		category:   types.CategoryPersonal,
		importance: 8,
		tags:       []string{"food", "childhood", "personal-history", "habits"},
	},
	// Life transitions
	{
		match:      transitionRe.MatchString,
		category:   types.CategoryPersonal,
		importance: 7,
		tags:       []string{"growth", "life-changes", "personal-development"},
	},
}

// bonusTags mark very personal information worth one extra importance point.
var bonusTags = []string{"childhood", "family", "personal-history"}

// Classify decides whether message holds a personal fact worth remembering.
// It is pure and safe for concurrent use.
func Classify(message string) Decision {
	lower := strings.ToLower(message)
	decision := Decision{
		EmotionalContext: emotion.DetectTone(lower),
	}
	if strings.TrimSpace(message) == "" {
		return decision
	}

	var tags []string
	for _, r := range rules {
		if r.matches(message) {
			decision.ShouldStore = true
			decision.Category = r.category
			decision.Importance = r.importance
			tags = append(tags, r.tags...)
			break
		}
	}

	// Checks only fill in category and importance when nothing set them yet;
	// their tags are always added.
	for _, c := range checks {
		if !c.match(lower) {
			continue
		}
		if !decision.ShouldStore {
			decision.ShouldStore = true
			decision.Category = c.category
			decision.Importance = c.importance
		}
		tags = append(tags, c.tags...)
	}

	if !decision.ShouldStore {
		return decision
	}

	decision.Content = message
	decision.Tags = lo.Uniq(tags)
	if slices.ContainsFunc(decision.Tags, func(tag string) bool {
		return slices.Contains(bonusTags, tag)
	}) {
		decision.Importance = min(types.MaxImportance, decision.Importance+1)
	}
	return decision
}
