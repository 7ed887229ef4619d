package scrape

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// headerProfile is one coherent browser identity: a User-Agent and the
// locale/client-hint headers a real session with that agent would send.
type headerProfile struct {
	userAgent string
	language  string
	secChUA   string
}

var defaultProfiles = []headerProfile{
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		language:  "es-PE,es;q=0.9,en;q=0.8",
		secChUA:   `"Google Chrome";v="124", "Chromium";v="124", "Not-A.Brand";v="99"`,
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		language:  "es-PE,es;q=0.9",
		secChUA:   `"Microsoft Edge";v="124", "Chromium";v="124", "Not-A.Brand";v="99"`,
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		language:  "es-PE,es;q=0.9,en-US;q=0.7",
	},
	{
		userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		language:  "es,en-US;q=0.8,en;q=0.5",
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		language:  "es-PE,es;q=0.8,en;q=0.5",
	},
}

var defaultReferers = []string{
	"https://www.google.com.pe/",
	"https://www.google.com/",
	"https://www.bing.com/",
	"", // direct visit
}

// HeaderRotator hands out browser-like header sets, never repeating the
// same profile on consecutive requests. Safe for concurrent use.
type HeaderRotator struct {
	mu       sync.Mutex
	profiles []headerProfile
	referers []string
	last     int
	rng      *rand.Rand
}

// NewHeaderRotator creates a rotator over the default profile pool.
func NewHeaderRotator() *HeaderRotator {
	return &HeaderRotator{
		profiles: defaultProfiles,
		referers: defaultReferers,
		last:     -1,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Apply sets a rotated header set on the request.
func (h *HeaderRotator) Apply(req *http.Request) {
	h.mu.Lock()
	idx := h.rng.Intn(len(h.profiles))
	if idx == h.last {
		idx = (idx + 1) % len(h.profiles)
	}
	h.last = idx
	p := h.profiles[idx]
	referer := h.referers[h.rng.Intn(len(h.referers))]
	h.mu.Unlock()

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", p.language)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if p.secChUA != "" {
		req.Header.Set("Sec-CH-UA", p.secChUA)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

// UserAgent returns the agent of a freshly rotated profile. Used by
// adapters whose client manages headers itself (e.g. colly collectors).
func (h *HeaderRotator) UserAgent() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := h.rng.Intn(len(h.profiles))
	if idx == h.last {
		idx = (idx + 1) % len(h.profiles)
	}
	h.last = idx
	return h.profiles[idx].userAgent
}
