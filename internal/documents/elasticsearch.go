// internal/documents/elasticsearch.go
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"admissions-workers/internal/common/logger"
)

// ESProvider reads document facts from the index maintained by the
// document ingestion pipeline.
type ESProvider struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESProvider(client *elasticsearch.Client, index string, log logger.Logger) *ESProvider {
	return &ESProvider{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "document-provider"}),
	}
}

type esDocument struct {
	Email        string  `json:"email"`
	DocumentType string  `json:"document_type"`
	Name         string  `json:"name"`
	AadhaarNum   string  `json:"aadhaar_number"`
	DOB          string  `json:"dob"`
	Year         int     `json:"year"`
	AvgMarks     float64 `json:"avg_marks"`
	Physics      float64 `json:"physics"`
	Chemistry    float64 `json:"chemistry"`
	Maths        float64 `json:"maths"`
	Rank         int     `json:"rank"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (p *ESProvider) Fetch(ctx context.Context, email string) (*Facts, error) {
	query := fmt.Sprintf(`{
		"query": {
			"term": {
				"email": %q
			}
		},
		"size": 20
	}`, email)

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, fmt.Errorf("document search failed for %s: %w", email, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("document search returned %s for %s: %s", res.Status(), email, string(body))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode document search response: %w", err)
	}

	if parsed.Hits.Total.Value == 0 {
		return nil, ErrFactsNotFound
	}

	facts := &Facts{}
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		switch doc.DocumentType {
		case DocAadhaarCard:
			facts.Aadhaar = &AadhaarFacts{Name: doc.Name, AadhaarNumber: doc.AadhaarNum, DOB: doc.DOB}
		case DocClass10Marksheet:
			facts.Class10 = &Class10Facts{Name: doc.Name, Year: doc.Year, AvgMarks: doc.AvgMarks}
		case DocClass12Marksheet:
			facts.Class12 = &Class12Facts{
				Name: doc.Name, Year: doc.Year,
				Physics: doc.Physics, Chemistry: doc.Chemistry, Maths: doc.Maths,
			}
		case DocJEERankCard:
			facts.JEE = &JEEFacts{Name: doc.Name, Year: doc.Year, Rank: doc.Rank}
		default:
			p.logger.Warn("skipping unknown document type", map[string]interface{}{
				"email":        doc.Email,
				"documentType": doc.DocumentType,
			})
		}
	}
	return facts, nil
}
