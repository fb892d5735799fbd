package scrape

import (
	"bytes"
	"net/http"
)

// BlockType names the kind of anti-bot wall a page is behind.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// jsShellMaxBytes bounds the body size treated as a possible JS-only shell.
const jsShellMaxBytes = 2000

var (
	cloudflareMarkers = [][]byte{
		[]byte("checking your browser"),
		[]byte("cf-browser-verification"),
		[]byte("cf-challenge"),
	}
	captchaMarkers = [][]byte{
		[]byte("captcha"),
	}
)

// DetectBlock reports whether resp and body look like an anti-bot
// interstitial rather than the site itself.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		h := resp.Header
		if h.Get("cf-ray") != "" || h.Get("cf-cache-status") != "" || h.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)
	if containsAny(lower, cloudflareMarkers) ||
		(bytes.Contains(lower, []byte("cloudflare")) && bytes.Contains(lower, []byte("challenge"))) {
		return true, BlockCloudflare
	}
	if containsAny(lower, captchaMarkers) {
		return true, BlockCaptcha
	}

	if len(body) < jsShellMaxBytes {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return true, BlockJSShell
		}
		if bytes.Contains(lower, []byte(`meta http-equiv="refresh"`)) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

func containsAny(b []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(b, m) {
			return true
		}
	}
	return false
}
