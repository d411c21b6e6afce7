// Package emotion detects coarse emotional signals in chat text.
package emotion

// Label is a message sentiment label.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)
