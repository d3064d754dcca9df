package template

import "strings"

// Filename is the download name of an event's pass sheet. Every character other
// than an ASCII letter or digit becomes an underscore.
func Filename(eventName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, eventName)
	if name == "" {
		name = "event"
	}
	return name + "_passes.pdf"
}
