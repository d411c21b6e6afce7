package prompt

import (
	"errors"
	"strings"
)

// ErrEmptyReply is returned when the model answered with nothing usable.
var ErrEmptyReply = errors.New("empty reply")

// ParseReply trims the model output. Any non-empty text is a valid reply.
func ParseReply(text string) (string, error) {
	reply := strings.TrimSpace(text)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
