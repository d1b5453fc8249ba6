package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/extraction"
	"AccidentLoader/internal/ports"
)

// Fields requested by name that have no extraction task yet; they resolve
// to extraction.UnresolvedMarker until one is registered.
const (
	fieldEnvironmentalImpact = "environmental_impact"
	fieldEconomicCost        = "economic_cost"
	fieldDisruptionDuration  = "disruption_duration"
)

const epiceaCountry = "France"

// epiceaUnknownSite fills plant name and address, which EPICEA never
// publishes; every EPICEA accident shares the site keyed by it.
const epiceaUnknownSite = "NULL"

// Extractor is the slice of extraction.Cache the EPICEA normalizer needs.
type Extractor interface {
	Extract(ctx context.Context, task extraction.Task, contextText string, opts ...extraction.Option) (extraction.Result, error)
	ExtractField(ctx context.Context, field, contextText string, opts ...extraction.Option) (extraction.Result, error)
}

// Epicea builds accident records from EPICEA dossiers, asking the extractor
// for every field that only exists in the free-text summary.
type Epicea struct {
	extractor Extractor
	ids       IDGenerator
	logger    *slog.Logger
	opts      []extraction.Option
}

var _ ports.RecordNormalizer = (*Epicea)(nil)

// NewEpicea wires the extraction cache and id generator.
func NewEpicea(extractor Extractor, ids IDGenerator, logger *slog.Logger) *Epicea {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Epicea{extractor: extractor, ids: ids, logger: logger}
}

// WithOptions returns a copy of the normalizer that passes opts to every
// extraction call, e.g. extraction.WithForceRefresh.
func (e *Epicea) WithOptions(opts ...extraction.Option) *Epicea {
	cp := *e
	cp.opts = append(append([]extraction.Option(nil), e.opts...), opts...)
	return &cp
}

// Normalize processes rows sequentially; the first extraction failure aborts.
func (e *Epicea) Normalize(ctx context.Context, rows []domain.RawRecord) ([]domain.AccidentRecord, error) {
	records := make([]domain.AccidentRecord, 0, len(rows))
	for i, row := range rows {
		record, err := e.normalizeRow(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("epicea row %d (dossier %s): %w", i, row.Get(domain.EpiceaDossier), err)
		}
		records = append(records, record)
		e.logger.Debug("dossier normalized", "dossier", record.Accident.SourceID, "progress", fmt.Sprintf("%d/%d", i+1, len(rows)))
	}
	return records, nil
}

func (e *Epicea) normalizeRow(ctx context.Context, row domain.RawRecord) (domain.AccidentRecord, error) {
	dossier := row.Get(domain.EpiceaDossier)
	description := row.Get(domain.EpiceaDescription)

	site := domain.Site{
		PlantName:          epiceaUnknownSite,
		Address:            epiceaUnknownSite,
		Country:            epiceaCountry,
		IndustrialActivity: label(row.Get(domain.EpiceaCTN)),
	}
	site.SiteID = e.ids.ID(site.Address)

	title, err := e.extractor.Extract(ctx, extraction.TaskTitle, description, e.opts...)
	if err != nil {
		return domain.AccidentRecord{}, err
	}

	accidentID := e.ids.ID(strings.Join([]string{title.Text, dossier}, " "))

	substances, err := e.extractor.Extract(ctx, extraction.TaskSubstances, description, e.opts...)
	if err != nil {
		return domain.AccidentRecord{}, err
	}

	counts := map[extraction.Task]int{}
	for _, task := range []extraction.Task{
		extraction.TaskFatalities,
		extraction.TaskInjuries,
		extraction.TaskEvacuated,
		extraction.TaskHospitalized,
	} {
		res, err := e.extractor.Extract(ctx, task, description, e.opts...)
		if err != nil {
			return domain.AccidentRecord{}, err
		}
		counts[task] = res.Number
	}

	other := domain.OtherConsequences{AccidentID: accidentID}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{fieldEnvironmentalImpact, &other.EnvironmentalImpact},
		{fieldEconomicCost, &other.EconomicCost},
		{fieldDisruptionDuration, &other.DisruptionDuration},
	} {
		res, err := e.extractor.ExtractField(ctx, f.name, description, e.opts...)
		if err != nil {
			return domain.AccidentRecord{}, err
		}
		*f.dst = res.String()
	}

	return domain.AccidentRecord{
		Site: site,
		Accident: domain.Accident{
			AccidentID: accidentID,
			SiteID:     site.SiteID,
			Title:      title.Text,
			Source:     domain.SourceEPICEA,
			SourceID:   dossier,
		},
		Causes: domain.Causes{
			AccidentID:    accidentID,
			EventCategory: label(row.Get(domain.EpiceaEnterprise)),
			Failure:       row.Get(domain.EpiceaEquipment),
			Description:   description,
		},
		Substances: substanceRows(accidentID, substances.Substances),
		HumanConsequences: domain.HumanConsequences{
			AccidentID:   accidentID,
			Fatalities:   counts[extraction.TaskFatalities],
			Injuries:     counts[extraction.TaskInjuries],
			Evacuated:    counts[extraction.TaskEvacuated],
			Hospitalized: counts[extraction.TaskHospitalized],
		},
		OtherConsequences: other,
	}, nil
}

func substanceRows(accidentID string, extracted []extraction.Substance) []domain.Substance {
	rows := make([]domain.Substance, 0, len(extracted))
	for _, s := range extracted {
		rows = append(rows, domain.Substance{
			AccidentID: accidentID,
			Name:       s.Name,
			CASNumber:  s.CASNumber,
			Quantity:   s.Quantity,
			CLPClass:   s.CLPClass,
		})
	}
	return rows
}
