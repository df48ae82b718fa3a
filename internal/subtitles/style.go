package subtitles

import (
	"errors"
	"fmt"
	"strings"
)

// Style names a caption presentation.
type Style string

const (
	StyleBottomCentered Style = "bottom-centered"
	StyleTopBar         Style = "top-bar"
	StyleKaraoke        Style = "karaoke"
)

// ErrUnknownStyle is returned by ParseStyle for values outside the enumeration.
var ErrUnknownStyle = errors.New("unknown caption style")

// Styles lists every supported presentation in display order.
func Styles() []Style {
	return []Style{StyleBottomCentered, StyleTopBar, StyleKaraoke}
}

// ParseStyle converts caller input into a Style. An empty value selects the
// bottom-centered default.
func ParseStyle(value string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(value))) {
	case "", StyleBottomCentered:
		return StyleBottomCentered, nil
	case StyleTopBar:
		return StyleTopBar, nil
	case StyleKaraoke:
		return StyleKaraoke, nil
	default:
		return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownStyle, value, strings.Join(styleNames(), ", "))
	}
}

func styleNames() []string {
	styles := Styles()
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = string(s)
	}
	return names
}

func (s Style) String() string {
	return string(s)
}
