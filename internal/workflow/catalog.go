package workflow

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ReasonsPerPage is the number of canned rejection reasons shown per page.
const ReasonsPerPage = 5

// defaultReasons is used when no catalog file is configured.
var defaultReasons = []string{
	"Insufficient account balance",
	"Transaction amount exceeds the daily limit",
	"Destination account details do not match",
	"Duplicate of an already settled transaction",
	"Suspicious activity flagged on the account",
	"Required documents are missing or expired",
	"Transaction cancelled at the customer's request",
}

// RejectionCatalog holds the canned rejection reasons a reviewer can pick
// from, plus pagination over them.
type RejectionCatalog struct {
	reasons []string
}

type catalogFile struct {
	Reasons []string `yaml:"reasons"`
}

// NewRejectionCatalog returns the built-in catalog.
func NewRejectionCatalog() *RejectionCatalog {
	return &RejectionCatalog{reasons: defaultReasons}
}

// LoadRejectionCatalog reads a catalog from a YAML file with a top-level
// "reasons" list. An empty list in the file falls back to the built-ins.
func LoadRejectionCatalog(path string) (*RejectionCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rejection catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rejection catalog: %w", err)
	}
	if len(f.Reasons) == 0 {
		slog.Warn("Rejection catalog file has no reasons, using built-ins", "path", path)
		return NewRejectionCatalog(), nil
	}
	slog.Info("Rejection catalog loaded", "path", path, "reasons", len(f.Reasons))
	return &RejectionCatalog{reasons: f.Reasons}, nil
}

// Len returns the number of canned reasons.
func (c *RejectionCatalog) Len() int {
	return len(c.reasons)
}

// Pages returns the number of pages in the catalog.
func (c *RejectionCatalog) Pages() int {
	n := len(c.reasons) / ReasonsPerPage
	if len(c.reasons)%ReasonsPerPage != 0 {
		n++
	}
	return n
}

// Reason returns the canned reason at a global index, or false if the
// index is out of range.
func (c *RejectionCatalog) Reason(index int) (string, bool) {
	if index < 0 || index >= len(c.reasons) {
		return "", false
	}
	return c.reasons[index], true
}

// CatalogPage is one page of canned reasons. Index positions are global
// so a selection survives page changes.
type CatalogPage struct {
	Page    int
	Start   int // global index of the first reason on the page
	Reasons []string
	HasPrev bool
	HasNext bool
}

// Page returns the given zero-based page, clamped into range.
func (c *RejectionCatalog) Page(page int) CatalogPage {
	pages := c.Pages()
	if page < 0 {
		page = 0
	}
	if pages > 0 && page >= pages {
		page = pages - 1
	}
	start := page * ReasonsPerPage
	end := start + ReasonsPerPage
	if end > len(c.reasons) {
		end = len(c.reasons)
	}
	return CatalogPage{
		Page:    page,
		Start:   start,
		Reasons: c.reasons[start:end],
		HasPrev: page > 0,
		HasNext: end < len(c.reasons),
	}
}
