package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rossisHTML = `<html><head><title>Rossi's Pizzeria</title>
<meta name="description" content="Wood-fired pizza in Springfield"></head>
<body><nav>Menu</nav>
<article><h1>Welcome to Rossi's</h1>
<p>We have served wood-fired pizza and fresh pasta in Springfield since 1982.
Every dough is made in house each morning and every sauce starts from whole tomatoes.</p>
<p>Order online for pickup or delivery, or visit us on Main Street for dinner with the family.</p>
</article>
<footer>Copyright 2024</footer></body></html>`

func serveHTML(t *testing.T, status int, header http.Header, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalScraper_Identity(t *testing.T) {
	s := NewLocalScraper()
	assert.Equal(t, "local_http", s.Name())
	assert.True(t, s.Supports("https://example.com"))
}

func TestLocalScraper_CleanHTML(t *testing.T) {
	srv := serveHTML(t, 200, nil, rossisHTML)

	page, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Source)
	assert.Equal(t, "Rossi's Pizzeria", page.Title)
	assert.Equal(t, "Wood-fired pizza in Springfield", page.Description)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML, "<h1>Welcome to Rossi's</h1>")
	assert.Contains(t, page.Content(), "wood-fired pizza")
}

func TestLocalScraper_Blocked(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
	}{
		{"cloudflare", 403, http.Header{"Cf-Ray": {"abc123"}}, "<html><body>Access denied</body></html>"},
		{"captcha", 200, nil, "<html><body>Please complete the reCAPTCHA to continue</body></html>"},
		{"js shell", 200, nil, "<html><noscript>You need to enable JavaScript to run this app.</noscript></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveHTML(t, tt.status, tt.header, tt.body)
			_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "blocked")
		})
	}
}

func TestLocalScraper_ErrorStatus(t *testing.T) {
	srv := serveHTML(t, 404, nil, rossisHTML)

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLocalScraper_EmptyPage(t *testing.T) {
	srv := serveHTML(t, 200, nil, "<html></html>")

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty page")
}

func TestLocalScraper_ContextCanceled(t *testing.T) {
	srv := serveHTML(t, 200, nil, rossisHTML)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalScraper().Scrape(ctx, srv.URL)
	require.Error(t, err)
}
