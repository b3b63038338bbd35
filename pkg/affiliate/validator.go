package affiliate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smartreview/platform/pkg/common/models"
)

// Result explains why an affiliate URL passed or failed validation.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// directMarketplaceHosts are storefront domains that must never appear as a
// bare destination for non-Amazon sources. Monetized links for those sources
// route through an affiliate network domain instead.
var directMarketplaceHosts = []string{
	"aliexpress.com",
	"temu.com",
	"alibaba.com",
	"ebay.com",
}

// Validate checks that a destination URL is monetizable for the source.
// Amazon links must carry a tracking tag; when expectedTag is set the tag has
// to match it exactly. Unparsable URLs fail closed.
func Validate(source, rawURL, expectedTag string) Result {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return Result{Valid: false, Reason: "unparsable url"}
	}
	host := strings.ToLower(parsed.Hostname())

	if source == models.SourceAmazon {
		if !strings.Contains(host, "amazon.") {
			return Result{Valid: false, Reason: "not an amazon domain"}
		}
		tag := parsed.Query().Get("tag")
		if tag == "" {
			return Result{Valid: false, Reason: "missing tracking tag"}
		}
		if expectedTag != "" && tag != expectedTag {
			return Result{Valid: false, Reason: fmt.Sprintf("tag %q does not match configured tag", tag)}
		}
		return Result{Valid: true}
	}

	for _, blocked := range directMarketplaceHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return Result{Valid: false, Reason: "direct marketplace link without affiliate routing"}
		}
	}
	return Result{Valid: true}
}

// BuildProductURL builds a tagged Amazon detail page URL.
func BuildProductURL(baseURL, asin, tag string) string {
	return fmt.Sprintf("%s/dp/%s?tag=%s", strings.TrimSuffix(baseURL, "/"), asin, url.QueryEscape(tag))
}

// ApplyDeepLinkPattern expands an account's deep link template. Supported
// placeholders are {url}, {query}, {trackingId} and {tag}.
func ApplyDeepLinkPattern(pattern, destination, trackingID string) string {
	if pattern == "" {
		return destination
	}
	out := pattern
	out = strings.ReplaceAll(out, "{url}", destination)
	out = strings.ReplaceAll(out, "{query}", url.QueryEscape(destination))
	out = strings.ReplaceAll(out, "{trackingId}", trackingID)
	out = strings.ReplaceAll(out, "{tag}", trackingID)
	return out
}
