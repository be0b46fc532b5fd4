package images

// DefaultFallback is served when no per-holiday fallback is registered.
const DefaultFallback = "https://images.unsplash.com/photo-1584646098378-0874589d76b1?auto=format&fit=crop&w=800"

func photo(id string) string {
	return "https://images.unsplash.com/" + id + "?auto=format&fit=crop&w=800"
}

// fallbacks is keyed by event base id.
var fallbacks = map[string]string{
	"pesach":          DefaultFallback,
	"yomhaatzmaut":    photo("photo-1556804335-2fa563e93aae"),
	"lagbaomer":       photo("photo-1517142089942-ba376ce32a2e"),
	"shavuot":         photo("photo-1589156569069-7f3a2513f5b5"),
	"summer_vacation": photo("photo-1507525428034-b723cf961d3e"),
	"roshhashana":     photo("photo-1567861911437-538298e4232c"),
	"yomkippur":       photo("photo-1504256624605-c31cde11be74"),
	"sukkot":          photo("photo-1601159093357-13f3e2c21faf"),
	"chanukah":        photo("photo-1607317146126-72a411daa11c"),
	"tubishvat":       photo("photo-1518114581056-e54e9f3108f6"),
	"purim":           photo("photo-1551103782-8ab07afd45c1"),
}

// Fallback returns the static image for baseID, or DefaultFallback.
func Fallback(baseID string) string {
	if u, ok := fallbacks[baseID]; ok {
		return u
	}
	return DefaultFallback
}
