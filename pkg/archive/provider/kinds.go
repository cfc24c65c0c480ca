package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// skipAnalysisStates are analysis states left out of the analyses summary.
var skipAnalysisStates = []string{record.StateRetracted, record.StateRejected, record.StateCancelled}

func sampleData(ctx context.Context, p *Provider, data map[string]string) error {
	s := p.rec.Sample
	if s == nil {
		s = &record.SampleData{}
	}

	children, err := p.r.Children(ctx, p.rec.UID)
	if err != nil {
		return err
	}
	var analyses []*record.Record
	for _, child := range children {
		if child.Kind == record.KindAnalysis && child.Analysis != nil {
			analyses = append(analyses, child)
		}
	}

	verifiers, err := p.fullNames(ctx, s.Verifiers)
	if err != nil {
		return err
	}
	submitters, err := p.submitters(ctx, analyses)
	if err != nil {
		return err
	}
	worksheets, err := p.worksheets(ctx, analyses)
	if err != nil {
		return err
	}

	data[KeySampleType] = s.SampleType
	data[KeyClient] = s.Client
	data[KeyContact] = s.Contact
	data[KeySampled] = isoDate(s.DateSampled)
	data[KeyPublished] = isoDate(s.DatePublished)
	data[KeyVerifiedBy] = verifiers
	data[KeySubmittedBy] = submitters
	data[KeyAnalyses] = analysesSummary(analyses)
	data[KeyBatch] = s.BatchID
	data[KeyWorksheets] = worksheets
	return nil
}

// analysesSummary renders "keyword: result unit" entries joined with "; ".
func analysesSummary(analyses []*record.Record) string {
	var out []string
	for _, an := range analyses {
		a := an.Analysis
		if a.Hidden || slices.Contains(skipAnalysisStates, an.State) || a.Result == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s %s", a.Keyword, a.Result, a.Unit))
	}
	return strings.Join(out, "; ")
}

func (p *Provider) submitters(ctx context.Context, analyses []*record.Record) (string, error) {
	var ids []string
	for _, an := range analyses {
		if id := an.Analysis.SubmittedBy; id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return p.fullNames(ctx, ids)
}

func (p *Provider) worksheets(ctx context.Context, analyses []*record.Record) (string, error) {
	var ids []string
	for _, an := range analyses {
		uid := an.Analysis.WorksheetUID
		if uid == "" {
			continue
		}
		ws, err := p.r.Get(ctx, uid)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if !slices.Contains(ids, ws.ID) {
			ids = append(ids, ws.ID)
		}
	}
	return strings.Join(ids, " "), nil
}

func batchData(ctx context.Context, p *Provider, data map[string]string) error {
	b := p.rec.Batch
	if b == nil {
		b = &record.BatchData{}
	}
	data[KeyClient] = b.Client
	data[KeyClientBatch] = b.ClientBatchID
	data[KeyBatchDate] = isoDate(b.BatchDate)
	return nil
}

func worksheetData(ctx context.Context, p *Provider, data map[string]string) error {
	analyst := ""
	if w := p.rec.Worksheet; w != nil && w.Analyst != "" {
		var err error
		if analyst, err = p.users.FullName(ctx, p.r, w.Analyst); err != nil {
			return err
		}
	}
	data[KeyAnalyst] = analyst
	return nil
}
