package draw

// Theme is the host color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme maps anything other than "light" to the dark theme.
func ParseTheme(v string) Theme {
	if v == string(ThemeLight) {
		return ThemeLight
	}
	return ThemeDark
}
