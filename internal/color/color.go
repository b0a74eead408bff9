// Package color validates the #RRGGBB color strings used across board
// headers, cards and tags.
package color

import "errors"

var (
	ErrLength = errors.New("color is not of the form #RRGGBB")
	ErrPrefix = errors.New("color does not start with #")
)

// Validate checks that the value is exactly seven bytes and starts
// with '#'. The channel bytes themselves are not interpreted.
func Validate(value string) error {
	if len(value) != 7 {
		return ErrLength
	}
	if value[0] != '#' {
		return ErrPrefix
	}
	return nil
}
