package types

import (
	"time"

	"merch/internal/claim/models"
)

// CodeView is one registry entry as an operator sees it. Status is the
// effective status, so an expired hold shows as unused.
type CodeView struct {
	Code          string        `json:"code"`
	Status        models.Status `json:"status"`
	EventID       uint64        `json:"eventId"`
	TokenURI      string        `json:"tokenURI"`
	ReservedBy    string        `json:"reservedBy,omitempty"`
	ReservedUntil *time.Time    `json:"reservedUntil,omitempty"`
	UsedBy        string        `json:"usedBy,omitempty"`
	UsedAt        *time.Time    `json:"usedAt,omitempty"`
}

// CodeList is the registry snapshot returned by GET /admin/codes.
type CodeList struct {
	Total    int        `json:"total"`
	Unused   int        `json:"unused"`
	Reserved int        `json:"reserved"`
	Used     int        `json:"used"`
	Codes    []CodeView `json:"codes"`
}

// SeedResult reports how many of the submitted codes were new.
type SeedResult struct {
	Submitted int `json:"submitted"`
	Added     int `json:"added"`
}
