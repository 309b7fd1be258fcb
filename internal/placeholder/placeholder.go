package placeholder

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// svgDataURL renders a labeled gray square as a base64 SVG data URL.
// Inlining the image avoids a network fetch for accounts without an avatar.
func svgDataURL(text string, size int) string {
	svg := strings.TrimSpace(fmt.Sprintf(`
<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
  <rect width="%d" height="%d" fill="#E0E0E0"/>
  <text x="50%%" y="50%%" font-family="Arial" font-size="%d" text-anchor="middle" fill="#666" dominant-baseline="middle">%s</text>
</svg>`, size, size, size, size, size/10, text))
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

var avatar = svgDataURL("User", 150)

// Avatar returns the default avatar image used when neither the profile
// store nor the identity provider supplies one.
func Avatar() string {
	return avatar
}
