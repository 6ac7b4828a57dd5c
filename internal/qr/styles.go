package qr

// Style names accepted by the generation endpoints. Tier configuration
// references these names in allowed_styles.
const (
	StyleBasic    = "basic"
	StyleLogo     = "logo"
	StyleText     = "text"
	StyleArtistic = "artistic"
	StyleQArt     = "qart"
	StyleEmbed    = "embed"
)

var AllStyles = []string{StyleBasic, StyleLogo, StyleText, StyleArtistic, StyleQArt, StyleEmbed}

func ValidStyle(name string) bool {
	for _, s := range AllStyles {
		if s == name {
			return true
		}
	}
	return false
}

// StyleInfo describes one style for the /styles metadata endpoint.
type StyleInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	RequiresImage bool   `json:"requires_image"`
}

func StyleCatalog() []StyleInfo {
	return []StyleInfo{
		{Name: StyleBasic, Description: "Simple QR with custom colors", RequiresImage: false},
		{Name: StyleLogo, Description: "Logo embedded in QR center", RequiresImage: true},
		{Name: StyleText, Description: "Text/words in QR center", RequiresImage: false},
		{Name: StyleArtistic, Description: "Image blended into the QR pattern", RequiresImage: true},
		{Name: StyleQArt, Description: "Halftone/dithered style", RequiresImage: true},
		{Name: StyleEmbed, Description: "QR placed on background image", RequiresImage: true},
	}
}

// ArtisticPreset bundles the tuning knobs for the artistic style.
type ArtisticPreset struct {
	Name        string  `json:"name"`
	Version     int     `json:"version"`
	Contrast    float64 `json:"contrast"`
	Brightness  float64 `json:"brightness"`
	Description string  `json:"description"`
}

var ArtisticPresets = map[string]ArtisticPreset{
	"small":  {Name: "small", Version: 5, Contrast: 1.2, Brightness: 1.1, Description: "Compact, high contrast"},
	"medium": {Name: "medium", Version: 10, Contrast: 1.3, Brightness: 1.1, Description: "Balanced (default)"},
	"large":  {Name: "large", Version: 15, Contrast: 1.3, Brightness: 1.2, Description: "High detail"},
	"hd":     {Name: "hd", Version: 20, Contrast: 1.4, Brightness: 1.2, Description: "Maximum detail"},
}

func PresetCatalog() []ArtisticPreset {
	return []ArtisticPreset{
		ArtisticPresets["small"],
		ArtisticPresets["medium"],
		ArtisticPresets["large"],
		ArtisticPresets["hd"],
	}
}
