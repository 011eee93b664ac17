package sources

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	titleSeparators = regexp.MustCompile(`\s[-|–—:]\s|[|:(\[!?]`)
	yearToken       = regexp.MustCompile(`^(19|20)\d{2}$`)
	urlPattern      = regexp.MustCompile(`https?://[^\s"'<>)]+`)
)

// Words that end the product name in a review-style title.
var cutWords = map[string]bool{
	"review": true, "reviews": true, "results": true, "scam": true, "legit": true,
	"ingredients": true, "exposed": true, "warning": true, "vs": true, "honest": true,
	"side": true, "does": true, "is": true, "my": true, "before": true, "after": true,
	"unboxing": true, "explained": true, "update": true, "customer": true,
}

// Words dropped from the front of a title before the product name starts.
var leadingNoise = map[string]bool{
	"my": true, "honest": true, "the": true, "truth": true, "about": true,
	"new": true, "real": true, "full": true, "watch": true, "why": true, "i": true, "tried": true,
}

// Hosts that never identify a vendor.
var nonVendorHosts = []string{
	"youtube.com", "youtu.be", "google.com", "instagram.com", "facebook.com", "fb.com",
	"twitter.com", "x.com", "tiktok.com", "bit.ly", "linktr.ee", "amzn.to", "t.me",
	"discord.gg", "patreon.com", "pinterest.com", "reddit.com", "goo.gl", "tinyurl.com",
}

const maxHintWords = 5

// ProductHintFromTitle extracts a likely product name from a promotional video
// title, e.g. "GlucoShield Review 2026 - Does It Work?" -> "GlucoShield".
// It returns "" when no plausible name can be found.
func ProductHintFromTitle(title string) string {
	title = html.UnescapeString(title)
	if loc := titleSeparators.FindStringIndex(title); loc != nil && loc[0] > 0 {
		title = title[:loc[0]]
	}

	words := strings.FieldsFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '"' || r == '#'
	})
	for len(words) > 0 && leadingNoise[strings.ToLower(words[0])] {
		words = words[1:]
	}

	var kept []string
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".'’"))
		if cutWords[lw] {
			break
		}
		if yearToken.MatchString(lw) || lw == "" {
			continue
		}
		kept = append(kept, strings.Trim(w, ".'’"))
	}
	if len(kept) == 0 || len(kept) > maxHintWords {
		return ""
	}
	return strings.Join(kept, " ")
}

// VendorFromDomain reduces a URL or bare host to a comparable vendor key:
// lowercase host without scheme, "www." prefix, port or path.
func VendorFromDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// VendorFromDescription returns the vendor key of the first outbound link in
// a video description that does not point at a social or link-shortener host.
func VendorFromDescription(desc string) string {
	for _, link := range urlPattern.FindAllString(desc, -1) {
		host := VendorFromDomain(link)
		if host == "" || isNonVendorHost(host) {
			continue
		}
		return host
	}
	return ""
}

func isNonVendorHost(host string) bool {
	for _, h := range nonVendorHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
