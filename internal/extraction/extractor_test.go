// internal/extraction/extractor_test.go
package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"property-tracker/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

const listingHTML = `<!doctype html>
<html>
<head>
  <title>Fallback title</title>
  <meta property="og:title" content="Bright 3 room flat">
  <meta property="og:image" content="https://img.example.com/1.jpg">
  <meta property="og:site_name" content="ListingsHub">
  <script>var tracking = "do not include";</script>
  <style>body { color: red; }</style>
</head>
<body>
  <nav>Home | Rent | Buy</nav>
  <main>
    <h1>Bright 3 room flat</h1>
    <p>Price: <strong>USD 180,000</strong></p>
    <p>Covered area 60 m2, balcony 8 m2.</p>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

type genaiStub struct {
	mu       sync.Mutex
	requests []chatRequest
	auth     []string
	reply    func(w http.ResponseWriter, r *http.Request)
}

func (g *genaiStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		g.mu.Lock()
		g.requests = append(g.requests, req)
		g.auth = append(g.auth, r.Header.Get("Authorization"))
		g.mu.Unlock()

		g.reply(w, r)
	}
}

func (g *genaiStub) lastUserMessage() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return ""
	}
	msgs := g.requests[len(g.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

func replyWith(content string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func testConfig(genaiURL string, fetchPage bool) *Config {
	return &Config{
		GenAIBaseURL:   genaiURL + "/v1",
		APIKey:         "test-key",
		Model:          "gpt-test",
		Timeout:        2 * time.Second,
		FetchPage:      fetchPage,
		FetchTimeout:   2 * time.Second,
		MaxPageBytes:   1 << 20,
		MaxPromptChars: 4000,
		// Listing pages in these tests are served from loopback.
		AllowPrivateHosts: true,
	}
}

func newTestExtractor(t *testing.T, genaiURL string, fetchPage bool) *Extractor {
	return NewExtractor(testConfig(genaiURL, fetchPage), logger.NewTestLogger(t))
}

// ==========================
// Extract
// ==========================

func TestExtract_Success(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, listingHTML)
	}))
	defer pages.Close()

	stub := &genaiStub{reply: replyWith("Here you go:\n```json\n{\n" +
		`  "title": "Bright 3 room flat",` + "\n" +
		`  "price": 180000, // as listed` + "\n" +
		`  "address": "Av. Siempre Viva 742",` + "\n" +
		`  "sourceName": null,` + "\n" +
		`  "lat": "-34.6037",` + "\n" +
		`  "lng": -58.3816,` + "\n" +
		`  "coveredArea": 60,` + "\n" +
		`  "uncoveredArea": "8",` + "\n" +
		`  "floorLabel": 3,` + "\n" +
		"}\n```")}
	genai := httptest.NewServer(stub.handler(t))
	defer genai.Close()

	ext := newTestExtractor(t, genai.URL, true)
	fields, err := ext.Extract(context.Background(), pages.URL+"/listing/42")
	require.NoError(t, err)

	assert.Equal(t, "Bright 3 room flat", fields.Title)
	assert.Equal(t, "180000", fields.Price)
	assert.Equal(t, "Av. Siempre Viva 742", fields.Address)
	assert.Equal(t, "ListingsHub", fields.SourceName)
	assert.Equal(t, "https://img.example.com/1.jpg", fields.Thumbnail)
	assert.Equal(t, "3", fields.FloorLabel)
	require.NotNil(t, fields.Lat)
	require.NotNil(t, fields.Lng)
	assert.InDelta(t, -34.6037, *fields.Lat, 1e-9)
	assert.InDelta(t, -58.3816, *fields.Lng, 1e-9)
	require.NotNil(t, fields.CoveredArea)
	assert.Equal(t, 60.0, *fields.CoveredArea)
	require.NotNil(t, fields.UncoveredArea)
	assert.Equal(t, 8.0, *fields.UncoveredArea)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.Equal(t, "Bearer test-key", stub.auth[0])
	assert.Equal(t, "gpt-test", req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)

	prompt := stub.lastUserMessage()
	assert.Contains(t, prompt, pages.URL+"/listing/42")
	assert.Contains(t, prompt, "USD 180,000")
	assert.NotContains(t, prompt, "do not include")
	assert.NotContains(t, prompt, "Home | Rent | Buy")
}

func TestExtract_PageFetchFailureIsNotFatal(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer pages.Close()

	stub := &genaiStub{reply: replyWith(`{"title":"Flat","price":"$100","address":"Main 1","sourceName":"Site"}`)}
	genai := httptest.NewServer(stub.handler(t))
	defer genai.Close()

	fields, err := newTestExtractor(t, genai.URL, true).Extract(context.Background(), pages.URL)
	require.NoError(t, err)
	assert.Equal(t, "Flat", fields.Title)
	assert.Equal(t, "$100", fields.Price)
	assert.Nil(t, fields.Lat)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		reply   func(http.ResponseWriter, *http.Request)
		wantErr error
	}{
		{
			name: "upstream error status",
			reply: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			wantErr: ErrExtractionFailed,
		},
		{
			name: "body is not json",
			reply: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>oops</html>")
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "no choices",
			reply:   func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"choices":[]}`) },
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "content without json",
			reply:   replyWith("Sorry, I cannot read that page."),
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "missing required field",
			reply:   replyWith(`{"title":"Flat","price":"1","address":"x"}`),
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "wrong field type",
			reply:   replyWith(`{"title":["a"],"price":"1","address":"x","sourceName":"y"}`),
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &genaiStub{reply: tt.reply}
			genai := httptest.NewServer(stub.handler(t))
			defer genai.Close()

			_, err := newTestExtractor(t, genai.URL, false).Extract(context.Background(), "https://listings.example.com/1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtract_Timeout(t *testing.T) {
	stub := &genaiStub{reply: func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}}
	genai := httptest.NewServer(stub.handler(t))
	defer genai.Close()

	cfg := newTestExtractor(t, genai.URL, false).config
	cfg.Timeout = 50 * time.Millisecond
	ext := NewExtractor(cfg, logger.NewTestLogger(t))

	_, err := ext.Extract(context.Background(), "https://listings.example.com/1")
	assert.ErrorIs(t, err, ErrExtractionTimeout)
}

func TestExtract_InvalidURL(t *testing.T) {
	ext := newTestExtractor(t, "http://127.0.0.1:1", false)
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative"} {
		_, err := ext.Extract(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestExtract_PromptIsTruncated(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body><p>"+strings.Repeat("long text ", 500)+"</p></body></html>")
	}))
	defer pages.Close()

	stub := &genaiStub{reply: replyWith(`{"title":null,"price":null,"address":null,"sourceName":null}`)}
	genai := httptest.NewServer(stub.handler(t))
	defer genai.Close()

	ext := newTestExtractor(t, genai.URL, true)
	ext.config.MaxPromptChars = 120

	fields, err := ext.Extract(context.Background(), pages.URL)
	require.NoError(t, err)
	assert.Empty(t, fields.Title)
	assert.LessOrEqual(t, len([]rune(stub.lastUserMessage())), 120)
}

// ==========================
// Reply parsing
// ==========================

func TestParseReplyBounds(t *testing.T) {
	ext := newTestExtractor(t, "http://127.0.0.1:1", false)

	fields, err := ext.parseReply(`{"title":"a","price":"1","address":"b","sourceName":"c","lat":123.4,"lng":"east","coveredArea":-5}`)
	require.NoError(t, err)
	assert.Nil(t, fields.Lat)
	assert.Nil(t, fields.Lng)
	assert.Nil(t, fields.CoveredArea)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced", "text\n```json\n{\"a\":1}\n```\nmore", `{"a":1}`},
		{"surrounding prose", `Result: {"a":"b"} done`, `{"a":"b"}`},
		{"trailing comma", "{\"a\":1,\n}", `{"a":1}`},
		{"line comment", "{\"a\":1 // one\n}", "{\"a\":1\n}"},
		{"slashes in string kept", `{"u":"https://x.y"}`, `{"u":"https://x.y"}`},
		{"nothing", "no json here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.content))
		})
	}
}

// ==========================
// Page conversion
// ==========================

func TestPageConverter(t *testing.T) {
	pg, err := newPageConverter().convert([]byte(listingHTML))
	require.NoError(t, err)

	assert.Equal(t, "Bright 3 room flat", pg.Title)
	assert.Equal(t, "https://img.example.com/1.jpg", pg.Image)
	assert.Equal(t, "ListingsHub", pg.SiteName)
	assert.Contains(t, pg.Markdown, "# Bright 3 room flat")
	assert.Contains(t, pg.Markdown, "**USD 180,000**")
	assert.NotContains(t, pg.Markdown, "tracking")
	assert.NotContains(t, pg.Markdown, "Copyright")
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.example.com/v1", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		e := &Extractor{config: &Config{GenAIBaseURL: tt.base}}
		assert.Equal(t, tt.want, e.endpoint())
	}
}

func TestExtract_RefusesPrivatePageHost(t *testing.T) {
	pageHits := 0
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageHits++
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head><meta property="og:title" content="AccessKeyId=AKIAINTERNAL"></head>`+
			`<body>SecretAccessKey=hidden</body></html>`)
	}))
	defer pages.Close()

	stub := &genaiStub{reply: replyWith(`{"title": null, "price": null, "address": null, "sourceName": null}`)}
	genai := httptest.NewServer(stub.handler(t))
	defer genai.Close()

	cfg := testConfig(genai.URL, true)
	cfg.AllowPrivateHosts = false
	flow := NewFlow(NewExtractor(cfg, logger.NewTestLogger(t)), nil, logger.NewTestLogger(t))

	slot, err := flow.Submit(context.Background(), "user-1", "slot-1", pages.URL+"/latest/meta-data")
	require.NoError(t, err)

	assert.Equal(t, 0, pageHits)
	require.NotNil(t, slot.Draft)
	assert.Equal(t, PlaceholderTitle, slot.Draft.Title)
	assert.Equal(t, PhaseVerifying, slot.Phase)
	assert.NotContains(t, stub.lastUserMessage(), "AKIAINTERNAL")
	assert.NotContains(t, stub.lastUserMessage(), "SecretAccessKey")
}
