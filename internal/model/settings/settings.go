package settings

// Accent color keys the UI understands.
const (
	AccentIndigo  = "indigo"
	AccentLime    = "lime"
	AccentCrimson = "crimson"
	AccentAzure   = "azure"
)

// Font size keys.
const (
	FontSmall  = "sm"
	FontMedium = "base"
	FontLarge  = "lg"
)

// Chat background keys. A custom uploaded image overrides the key.
const (
	BackgroundDeepSpace     = "deep_space"
	BackgroundInkwell       = "inkwell"
	BackgroundCharcoalNight = "charcoal_night"
	BackgroundPureBlack     = "pure_black"
)

// AppSettings captures the persisted UI preferences.
type AppSettings struct {
	AccentColor               string  `json:"accentColor"`
	FontSize                  string  `json:"fontSize"`
	ChatBackground            string  `json:"chatBackground"`
	CustomChatBackgroundImage *string `json:"customChatBackgroundImage"`
}

// Default returns the settings used when nothing is stored yet.
func Default() AppSettings {
	return AppSettings{
		AccentColor:    AccentIndigo,
		FontSize:       FontMedium,
		ChatBackground: BackgroundDeepSpace,
	}
}

var (
	accentColors = map[string]bool{
		AccentIndigo: true, AccentLime: true, AccentCrimson: true, AccentAzure: true,
	}
	fontSizes = map[string]bool{
		FontSmall: true, FontMedium: true, FontLarge: true,
	}
	backgrounds = map[string]bool{
		BackgroundDeepSpace: true, BackgroundInkwell: true,
		BackgroundCharcoalNight: true, BackgroundPureBlack: true,
	}
)

// Sanitize replaces unknown keys with their defaults. Stored settings may
// predate the current option set, so loads go through here.
func (s AppSettings) Sanitize() AppSettings {
	def := Default()
	if !accentColors[s.AccentColor] {
		s.AccentColor = def.AccentColor
	}
	if !fontSizes[s.FontSize] {
		s.FontSize = def.FontSize
	}
	if !backgrounds[s.ChatBackground] {
		s.ChatBackground = def.ChatBackground
	}
	return s
}
