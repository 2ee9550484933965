package models

import (
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// DefinitionSummary is one row of GET /api/definitions.
type DefinitionSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Digest      string    `json:"digest"`
	Updated     time.Time `json:"updated"`
}

func SummarizeDefinition(d *domain.StoredDefinition) DefinitionSummary {
	return DefinitionSummary{Name: d.Name, Description: d.Description, Digest: d.Digest, Updated: d.Updated}
}
