package cursor

import (
	"math/rand/v2"
	"unicode/utf16"
)

var palette = [...]string{
	"#FF5252", "#FF4081", "#E040FB", "#7C4DFF",
	"#536DFE", "#448AFF", "#40C4FF", "#18FFFF",
	"#64FFDA", "#69F0AE", "#B2FF59", "#EEFF41",
	"#FFFF00", "#FFD740", "#FFAB40", "#FF6E40",
}

// ColorFor picks a stable palette colour for userID. Every client computes
// the same colour for the same user, hashing UTF-16 code units as the web
// client does. An empty id gets a random colour.
func ColorFor(userID string) string {
	if userID == "" {
		return palette[rand.IntN(len(palette))]
	}
	var h int32
	for _, unit := range utf16.Encode([]rune(userID)) {
		h = (h << 5) - h + int32(unit)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return palette[n%int64(len(palette))]
}
