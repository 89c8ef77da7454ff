// internal/workers/data-access/query-admissions/models.go
package queryadmissions

import "admissions-workers/internal/models"

type Input struct {
	QueryType models.QueryType       `json:"queryType"`
	Email     string                 `json:"email,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

type Output struct {
	QueryType       models.QueryType `json:"queryType"`
	Data            interface{}      `json:"data"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
}
