// Package provider projects a record into the key/value summary kept on its
// archive stub.
//
// Each archivable kind extends the common projection through a dispatch
// table resolved at package initialization. A Provider computes its
// projection once and hands out copies, since the source record is about to
// be deleted.
package provider

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Keys of the common projection.
const (
	KeyID          = "id"
	KeyUID         = "uid"
	KeyPath        = "path"
	KeyCreated     = "Date created"
	KeyModified    = "Date modified"
	KeyStatus      = "Status"
	KeyPortalType  = "portal_type"
	KeyCreatedBy   = "Created by"
	KeyAnalyses    = "Analyses"
	KeyClient      = "Client"
	KeyWorksheets  = "Worksheets"
	KeySampleType  = "Sample type"
	KeyContact     = "Contact"
	KeySampled     = "Date sampled"
	KeyPublished   = "Date published"
	KeyVerifiedBy  = "Verified by"
	KeySubmittedBy = "Submitted by"
	KeyBatch       = "Batch"
	KeyClientBatch = "Client Batch ID"
	KeyBatchDate   = "Batch date"
	KeyAnalyst     = "Analyst"
)

// extension adds kind-specific entries to the projection.
type extension func(ctx context.Context, p *Provider, data map[string]string) error

var extensions = map[record.Kind]extension{
	record.KindSample:    sampleData,
	record.KindBatch:     batchData,
	record.KindWorksheet: worksheetData,
}

// searchExclude lists the keys left out of the searchable text.
var searchExclude = map[record.Kind][]string{
	"":                {KeyUID, KeyModified, KeyPath},
	record.KindSample: {KeyUID, KeyModified, KeyPath, KeyAnalyses},
}

// bodyExclude lists the keys that are stub fields rather than body entries.
var bodyExclude = []string{KeyID, KeyUID, KeyPath, KeyPortalType}

// Provider computes the stub projection of one record.
type Provider struct {
	rec   *record.Record
	r     store.Reader
	users *Users
	data  map[string]string
}

// New creates a provider for rec reading related objects through r.
func New(r store.Reader, users *Users, rec *record.Record) *Provider {
	if users == nil {
		users = NewUsers(0, 0)
	}
	return &Provider{rec: rec, r: r, users: users}
}

// Data returns the projection. It is computed on the first call; every call
// returns an independent copy.
func (p *Provider) Data(ctx context.Context) (map[string]string, error) {
	if p.data == nil {
		data, err := p.compute(ctx)
		if err != nil {
			return nil, err
		}
		p.data = data
	}
	return maps.Clone(p.data), nil
}

func (p *Provider) compute(ctx context.Context) (map[string]string, error) {
	creator := ""
	if p.rec.Creator != "" {
		var err error
		if creator, err = p.users.FullName(ctx, p.r, p.rec.Creator); err != nil {
			return nil, err
		}
	}

	data := map[string]string{
		KeyID:         p.rec.ID,
		KeyUID:        p.rec.UID,
		KeyPath:       p.rec.Path,
		KeyCreated:    isoDate(p.rec.Created),
		KeyModified:   isoDate(p.rec.Modified),
		KeyStatus:     p.rec.State,
		KeyPortalType: string(p.rec.Kind),
		KeyCreatedBy:  creator,
	}

	if ext := extensions[p.rec.Kind]; ext != nil {
		if err := ext(ctx, p, data); err != nil {
			return nil, fmt.Errorf("project %s %s: %w", p.rec.Kind, p.rec.UID, err)
		}
	}
	return data, nil
}

// SearchableText joins the projection values the stub can be searched by.
// Values are ordered by key and empty values are dropped.
func (p *Provider) SearchableText(ctx context.Context) (string, error) {
	data, err := p.Data(ctx)
	if err != nil {
		return "", err
	}
	exclude, ok := searchExclude[p.rec.Kind]
	if !ok {
		exclude = searchExclude[""]
	}

	var words []string
	for _, key := range slices.Sorted(maps.Keys(data)) {
		if slices.Contains(exclude, key) || data[key] == "" {
			continue
		}
		words = append(words, data[key])
	}
	return strings.Join(words, " "), nil
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// fullNames renders user ids with FullName and joins them with ", ".
func (p *Provider) fullNames(ctx context.Context, ids []string) (string, error) {
	var names []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		name, err := p.users.FullName(ctx, p.r, id)
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}
	return strings.Join(names, ", "), nil
}
