// internal/extraction/models.go
package extraction

// Fields is the best-effort guess the model makes about a listing.
// Title, Price, Address and SourceName are always present (possibly empty);
// the rest are optional.
type Fields struct {
	Title         string   `json:"title"`
	Price         string   `json:"price"`
	Address       string   `json:"address"`
	SourceName    string   `json:"sourceName"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	CoveredArea   *float64 `json:"coveredArea,omitempty"`
	UncoveredArea *float64 `json:"uncoveredArea,omitempty"`
	OperationType string   `json:"operationType,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty"`
	FloorLabel    string   `json:"floorLabel,omitempty"`
	Expenses      string   `json:"expenses,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// replySchema describes the JSON object the model must return.
const replySchema = `{
	"type": "object",
	"properties": {
		"title":         {"type": ["string", "null"]},
		"price":         {"type": ["string", "number", "null"]},
		"address":       {"type": ["string", "null"]},
		"sourceName":    {"type": ["string", "null"]},
		"lat":           {"type": ["number", "string", "null"]},
		"lng":           {"type": ["number", "string", "null"]},
		"thumbnail":     {"type": ["string", "null"]},
		"coveredArea":   {"type": ["number", "string", "null"]},
		"uncoveredArea": {"type": ["number", "string", "null"]},
		"operationType": {"type": ["string", "null"]},
		"propertyType":  {"type": ["string", "null"]},
		"floorLabel":    {"type": ["string", "number", "null"]},
		"expenses":      {"type": ["string", "number", "null"]}
	},
	"required": ["title", "price", "address", "sourceName"]
}`
