package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/reel/internal/storage"
)

// Detector examines a fetch result to determine if a bot protection
// mechanism or an upstream gateway blocked or challenged the request.
type Detector func(res *storage.ScrapeResult) (detected bool, source string)

// Detection sources reported on ScrapeResult.DetectionSrc.
const (
	SourceGoogleCaptcha = "GoogleCaptcha"
	SourceGateway       = "Gateway"
	SourceCloudflare    = "Cloudflare"
	SourceRateLimited   = "RateLimited"
)

// DefaultDetectors returns the detectors run on every Wikipedia and SERP
// API response.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleCaptcha,
		detectGateway,
		detectCloudflare,
		detectRateLimited,
	}
}

// Analyze runs the result through all provided detectors. It updates the result
// in place with the detection status and returns true if any detection triggered.
func Analyze(res *storage.ScrapeResult, detectors []Detector) bool {
	if res == nil {
		return false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			res.DetectedBot = true
			res.DetectionSrc = source
			return true
		}
	}
	res.DetectedBot = false
	res.DetectionSrc = ""
	return false
}

// AnalyzeHTML runs the detectors over a SERP page that arrived embedded in
// an otherwise successful API response.
func AnalyzeHTML(html string, detectors []Detector) (bool, string) {
	res := &storage.ScrapeResult{StatusCode: http.StatusOK, Body: []byte(html)}
	if Analyze(res, detectors) {
		return true, res.DetectionSrc
	}
	return false, ""
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	// Case-insensitive fallback
	lowerKey := strings.ToLower(key)
	for k, vals := range headers {
		if strings.ToLower(k) == lowerKey && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// detectGoogleCaptcha looks for the "unusual traffic" interstitial Google
// serves instead of results. The scraping API sometimes passes it through
// with a 200.
func detectGoogleCaptcha(res *storage.ScrapeResult) (bool, string) {
	if bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) ||
		bytes.Contains(res.Body, []byte("google.com/sorry/")) ||
		bytes.Contains(res.Body, []byte(`id="captcha-form"`)) {
		return true, SourceGoogleCaptcha
	}
	return false, ""
}

// detectGateway catches proxy error pages returned in place of the
// upstream response.
func detectGateway(res *storage.ScrapeResult) (bool, string) {
	switch res.StatusCode {
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return true, SourceGateway
	case http.StatusServiceUnavailable:
		if bytes.Contains(bytes.ToLower(res.Body), []byte("bad gateway")) ||
			bytes.Contains(bytes.ToLower(res.Body), []byte("upstream")) {
			return true, SourceGateway
		}
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res *storage.ScrapeResult) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(getHeader(res.Headers, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, SourceCloudflare
		}

		if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(res.Body, []byte("cf-turnstile")) ||
			bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
			return true, SourceCloudflare
		}
	}
	return false, ""
}

// detectRateLimited flags 429s from Wikipedia or the scraping API.
func detectRateLimited(res *storage.ScrapeResult) (bool, string) {
	if res.StatusCode == http.StatusTooManyRequests {
		return true, SourceRateLimited
	}
	return false, ""
}
