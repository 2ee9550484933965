package domain

import "time"

// StoredDefinition is the persisted form of a registered definition.
type StoredDefinition struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Digest      string    `json:"digest"`
	Document    string    `json:"document"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	FlowChart   string    `json:"flowChart"`
}
