// internal/search/models.go
package search

import (
	"time"

	"property-tracker/internal/models"
)

// Mapping is the index definition used when the index is created.
const Mapping = `{
	"mappings": {
		"properties": {
			"searchGroupId": {"type": "keyword"},
			"title":         {"type": "text"},
			"address":       {"type": "text"},
			"comments":      {"type": "text"},
			"contactName":   {"type": "text"},
			"sourceName":    {"type": "text"},
			"propertyType":  {"type": "keyword"},
			"operationType": {"type": "keyword"},
			"status":        {"type": "keyword"},
			"price":         {"type": "keyword"},
			"favorite":      {"type": "boolean"},
			"rating":        {"type": "integer"},
			"createdAt":     {"type": "date"}
		}
	}
}`

type document struct {
	SearchGroupID string    `json:"searchGroupId"`
	Title         string    `json:"title"`
	Address       string    `json:"address"`
	Comments      string    `json:"comments"`
	ContactName   string    `json:"contactName"`
	SourceName    string    `json:"sourceName"`
	PropertyType  string    `json:"propertyType"`
	OperationType string    `json:"operationType"`
	Status        string    `json:"status"`
	Price         string    `json:"price"`
	Favorite      bool      `json:"favorite"`
	Rating        int       `json:"rating"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newDocument(p models.Property) document {
	return document{
		SearchGroupID: p.SearchGroupID,
		Title:         p.Title,
		Address:       p.Address,
		Comments:      p.Comments,
		ContactName:   p.ContactName,
		SourceName:    p.SourceName,
		PropertyType:  p.PropertyType,
		OperationType: p.OperationType,
		Status:        string(p.Status),
		Price:         p.Price,
		Favorite:      p.Favorite,
		Rating:        p.Rating,
		CreatedAt:     p.CreatedAt,
	}
}

// Hit is one search result.
type Hit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Address string  `json:"address"`
	Price   string  `json:"price"`
	Status  string  `json:"status"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
