package delivery

import (
	"net/url"
	"strings"
)

// Caption composes the message text from the post's title and body.
func Caption(title, body string) string {
	if body == "" {
		return title
	}
	return title + "\n\n" + body
}

// IsExternalRef reports whether a media ref is an absolute URL passed through
// to the gateway as-is. Anything else is a key into our own media storage,
// which is released after a successful send.
func IsExternalRef(ref string) bool {
	if ref == "" {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// TrimCaption bounds the caption to Telegram's media caption limit.
func TrimCaption(caption string, max int) string {
	if len(caption) <= max {
		return caption
	}
	cut := strings.ToValidUTF8(caption[:max], "")
	return cut
}
