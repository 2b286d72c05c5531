package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadError reports an unreadable or malformed catalog document. The caller
// is expected to log it and keep running with the empty catalog returned
// alongside.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FactSheet carries the structured donation data referenced by the
// generative fallback prompt.
type FactSheet struct {
	Transfer string   `json:"transferencia"`
	Products []string `json:"productos_solidarios"`
	Mission  string   `json:"mision,omitempty"`
}

// HasDonationData reports whether the required prompt facts are present.
func (f FactSheet) HasDonationData() bool {
	return strings.TrimSpace(f.Transfer) != "" && len(f.Products) > 0
}

type infoDocument struct {
	Donations FactSheet `json:"donaciones"`
	Mission   string    `json:"mision"`
}

// Catalog exposes the canned question→answer mapping plus the fact sheet.
// Immutable after Load.
type Catalog struct {
	responses map[string]string
	keys      []string
	facts     FactSheet
}

// Empty returns a catalog with no entries and no facts, the degraded state
// used when the source documents cannot be loaded.
func Empty() *Catalog {
	return &Catalog{responses: map[string]string{}}
}

// New builds a catalog from an in-memory mapping, primarily for tests.
func New(responses map[string]string, facts FactSheet) *Catalog {
	c := &Catalog{
		responses: make(map[string]string, len(responses)),
		facts:     facts,
	}
	for k, v := range responses {
		c.responses[k] = v
	}
	c.keys = sortedKeys(c.responses)
	return c
}

// Load reads the response mapping and the info document. On failure it
// returns the error together with an empty catalog so the caller can degrade
// instead of terminating.
func Load(responsesPath, infoPath string) (*Catalog, error) {
	responses, err := loadResponses(responsesPath)
	if err != nil {
		return Empty(), err
	}

	facts, err := loadFacts(infoPath)
	if err != nil {
		return New(responses, FactSheet{}), err
	}

	return New(responses, facts), nil
}

func loadResponses(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	responses := map[string]string{}
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return responses, nil
}

func loadFacts(path string) (FactSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FactSheet{}, &LoadError{Path: path, Err: err}
	}

	var doc infoDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return FactSheet{}, &LoadError{Path: path, Err: err}
	}

	facts := doc.Donations
	if facts.Mission == "" {
		facts.Mission = doc.Mission
	}
	return facts, nil
}

// Answer returns the canned answer for an exact key.
func (c *Catalog) Answer(key string) (string, bool) {
	answer, ok := c.responses[key]
	return answer, ok
}

// Response returns the canned answer for key, or fallback when absent.
func (c *Catalog) Response(key, fallback string) string {
	if answer, ok := c.responses[key]; ok {
		return answer
	}
	return fallback
}

// Keys returns the canonical question keys in lexicographic order. The
// ordering is what makes matcher tie-breaks deterministic.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len reports the number of canned entries.
func (c *Catalog) Len() int {
	return len(c.responses)
}

// Facts returns the structured donation data.
func (c *Catalog) Facts() FactSheet {
	return c.facts
}

// Serialize renders the full mapping as JSON for use as prompt context.
func (c *Catalog) Serialize() (string, error) {
	data, err := json.Marshal(c.responses)
	if err != nil {
		return "", fmt.Errorf("serialize catalog: %w", err)
	}
	return string(data), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
