// internal/documents/documentstest/static.go
package documentstest

import (
	"context"

	"admissions-workers/internal/documents"
)

// StaticProvider serves facts from a fixed map, keyed by email. Emails
// absent from the map report documents.ErrFactsNotFound. Err, when
// set, is returned for every lookup.
type StaticProvider struct {
	Facts map[string]*documents.Facts
	Err   error

	// Calls counts Fetch invocations per email.
	Calls map[string]int
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		Facts: make(map[string]*documents.Facts),
		Calls: make(map[string]int),
	}
}

func (p *StaticProvider) Fetch(ctx context.Context, email string) (*documents.Facts, error) {
	p.Calls[email]++
	if p.Err != nil {
		return nil, p.Err
	}
	facts, ok := p.Facts[email]
	if !ok {
		return nil, documents.ErrFactsNotFound
	}
	return facts, nil
}
