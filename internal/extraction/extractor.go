// internal/extraction/extractor.go
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	commonhttp "property-tracker/internal/common/http"
	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrExtractionFailed  = errors.New("EXTRACTION_FAILED")
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
	ErrMalformedResponse = errors.New("EXTRACTION_MALFORMED_RESPONSE")
	ErrInvalidURL        = errors.New("VALIDATION_FAILED")
)

const systemPrompt = `You extract real-estate listing details. Reply with a single JSON object and nothing else.
Keys: title, price, address, sourceName, lat, lng, thumbnail, coveredArea, uncoveredArea,
operationType, propertyType, floorLabel, expenses.
title, price, address and sourceName are required; use null when unknown.
price keeps the currency as written on the listing. Areas are numbers in square meters.
lat and lng are decimal degrees.`

// Extractor turns a listing URL into a best-effort set of property fields.
type Extractor struct {
	config    *Config
	genai     *commonhttp.Client
	pages     *commonhttp.Client
	converter *pageConverter
	schema    *validation.Schema
	logger    logger.Logger
	tracer    trace.Tracer
}

func NewExtractor(cfg *Config, log logger.Logger) *Extractor {
	pageOpts := []commonhttp.Option{commonhttp.WithMaxRedirects(maxPageRedirects)}
	if !cfg.AllowPrivateHosts {
		pageOpts = append(pageOpts, commonhttp.WithPublicOnly())
	}
	return &Extractor{
		config:    cfg,
		genai:     commonhttp.NewClient(cfg.Timeout),
		pages:     commonhttp.NewClient(cfg.FetchTimeout, pageOpts...),
		converter: newPageConverter(),
		schema:    validation.MustCompile(replySchema),
		logger:    log,
		tracer:    otel.Tracer("property-tracker/extraction"),
	}
}

// Extract asks the model for the listing fields behind rawURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Fields, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validation.ValidateURL(rawURL) {
		return nil, fmt.Errorf("%w: not an http(s) url: %q", ErrInvalidURL, rawURL)
	}

	ctx, span := e.tracer.Start(ctx, "extraction.extract", trace.WithAttributes(attribute.String("listing.url", rawURL)))
	defer span.End()

	log := e.logger.With(map[string]interface{}{"url": rawURL})

	var pg *page
	if e.config.FetchPage {
		var err error
		pg, err = e.fetchPage(ctx, rawURL)
		if err != nil {
			// The model can still work from the URL alone.
			log.Warn("listing page fetch failed", map[string]interface{}{"error": err.Error()})
			span.AddEvent("page fetch failed")
		}
	}

	fields, err := e.ask(ctx, rawURL, pg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("extraction failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	fillFromPage(fields, pg)
	log.Info("extraction completed", map[string]interface{}{
		"title":      fields.Title,
		"sourceName": fields.SourceName,
	})
	return fields, nil
}

func (e *Extractor) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.fetch_page")
	defer span.End()

	body, contentType, err := e.pages.GetLimited(ctx, rawURL, e.config.MaxPageBytes)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	return e.converter.convert(body)
}

func (e *Extractor) ask(ctx context.Context, rawURL string, pg *page) (*Fields, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.genai")
	defer span.End()

	req := chatRequest{
		Model: e.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: e.buildPrompt(rawURL, pg)},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	err := e.genai.PostJSON(ctx, e.endpoint(), map[string]string{
		"Authorization": "Bearer " + e.config.APIKey,
	}, req, &resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
		}
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: genai returned %d", ErrExtractionFailed, statusErr.StatusCode)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in reply", ErrMalformedResponse)
	}
	return e.parseReply(resp.Choices[0].Message.Content)
}

func (e *Extractor) endpoint() string {
	base := strings.TrimRight(e.config.GenAIBaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (e *Extractor) buildPrompt(rawURL string, pg *page) string {
	var b strings.Builder
	b.WriteString("Listing URL: ")
	b.WriteString(rawURL)
	b.WriteString("\n")
	if pg != nil {
		if pg.Title != "" {
			b.WriteString("Page title: " + pg.Title + "\n")
		}
		if pg.SiteName != "" {
			b.WriteString("Site: " + pg.SiteName + "\n")
		}
		if pg.Markdown != "" {
			b.WriteString("\nPage content:\n")
			b.WriteString(pg.Markdown)
		}
	}

	prompt := b.String()
	if e.config.MaxPromptChars > 0 && len(prompt) > e.config.MaxPromptChars {
		prompt = truncateRunes(prompt, e.config.MaxPromptChars)
	}
	return prompt
}

// parseReply validates the model output against the reply schema and coerces
// it into Fields.
func (e *Extractor) parseReply(content string) (*Fields, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result, err := e.schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(result.GetErrorMessages(), "; "))
	}

	f := &Fields{
		Title:         stringValue(doc["title"]),
		Price:         stringValue(doc["price"]),
		Address:       stringValue(doc["address"]),
		SourceName:    stringValue(doc["sourceName"]),
		Thumbnail:     stringValue(doc["thumbnail"]),
		OperationType: stringValue(doc["operationType"]),
		PropertyType:  stringValue(doc["propertyType"]),
		FloorLabel:    stringValue(doc["floorLabel"]),
		Expenses:      stringValue(doc["expenses"]),
		Lat:           boundedValue(doc["lat"], 90),
		Lng:           boundedValue(doc["lng"], 180),
		CoveredArea:   areaValue(doc["coveredArea"]),
		UncoveredArea: areaValue(doc["uncoveredArea"]),
	}
	return f, nil
}

// fillFromPage covers gaps the model left with what the page itself declares.
func fillFromPage(f *Fields, pg *page) {
	if pg == nil {
		return
	}
	if f.Title == "" {
		f.Title = pg.Title
	}
	if f.Thumbnail == "" {
		f.Thumbnail = pg.Image
	}
	if f.SourceName == "" {
		f.SourceName = pg.SiteName
	}
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func numberValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func boundedValue(v interface{}, limit float64) *float64 {
	n, ok := numberValue(v)
	if !ok || math.IsNaN(n) || math.Abs(n) > limit {
		return nil
	}
	return &n
}

func areaValue(v interface{}) *float64 {
	n, ok := numberValue(v)
	if !ok || math.IsNaN(n) || n < 0 {
		return nil
	}
	return &n
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// hostOf returns the listing host without a leading "www.".
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
