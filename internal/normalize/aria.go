package normalize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/ports"
)

const (
	consequencePrefix        = "CONSÉQUENCES "
	consequenceEnvironmental = "ENVIRONNEMENTALES"
	consequenceEconomic      = "ÉCONOMIQUES"
)

var ariaDateLayouts = []string{"02/01/2006", "2006-01-02", "02/01/2006 15:04"}

// Aria builds accident records from ARIA export rows. Every field is
// present in the export, so no extraction is involved.
type Aria struct {
	ids    IDGenerator
	logger *slog.Logger
}

var _ ports.RecordNormalizer = (*Aria)(nil)

// NewAria wires the id generator.
func NewAria(ids IDGenerator, logger *slog.Logger) *Aria {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aria{ids: ids, logger: logger}
}

// Normalize maps each export row to one record.
func (a *Aria) Normalize(ctx context.Context, rows []domain.RawRecord) ([]domain.AccidentRecord, error) {
	records := make([]domain.AccidentRecord, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, a.normalizeRow(row))
	}
	a.logger.Debug("aria rows normalized", "count", len(records))
	return records, nil
}

func (a *Aria) normalizeRow(row domain.RawRecord) domain.AccidentRecord {
	address := strings.Join([]string{row.Get(domain.AriaDepartment), row.Get(domain.AriaCommune)}, " ")
	site := domain.Site{
		SiteID:             a.ids.ID(address),
		Address:            address,
		Country:            row.Get(domain.AriaCountry),
		IndustrialActivity: row.Get(domain.AriaNAFCode),
	}

	title := row.Get(domain.AriaTitle)
	date := row.Get(domain.AriaDate)
	accidentID := a.ids.ID(strings.Join([]string{title, date}, " "))

	consequences := parseConsequences(row.Get(domain.AriaConsequences))

	return domain.AccidentRecord{
		Site: site,
		Accident: domain.Accident{
			AccidentID:    accidentID,
			SiteID:        site.SiteID,
			Title:         title,
			Source:        domain.SourceARIA,
			SourceID:      row.Get(domain.AriaNumber),
			AccidentDate:  parseDate(date),
			SeverityScale: row.Get(domain.AriaSeverity),
		},
		Causes: domain.Causes{
			AccidentID:    accidentID,
			EventCategory: row.Get(domain.AriaRootCauses),
			Failure:       row.Get(domain.AriaFirstCauses),
			Description:   row.Get(domain.AriaContent),
		},
		Substances:        ariaSubstances(accidentID, row),
		HumanConsequences: domain.HumanConsequences{AccidentID: accidentID},
		OtherConsequences: domain.OtherConsequences{
			AccidentID:          accidentID,
			EnvironmentalImpact: consequences[consequenceEnvironmental],
			EconomicCost:        consequences[consequenceEconomic],
			DisruptionDuration:  row.Get(domain.AriaEventType),
		},
	}
}

func ariaSubstances(accidentID string, row domain.RawRecord) []domain.Substance {
	name := row.Get(domain.AriaMaterials)
	if name == "" {
		return []domain.Substance{}
	}
	return []domain.Substance{{
		AccidentID: accidentID,
		Name:       name,
		CLPClass:   row.Get(domain.AriaCLPClass),
	}}
}

// parseConsequences splits "CONSÉQUENCES <KIND>,<text>," segments by kind.
func parseConsequences(raw string) map[string]string {
	out := map[string]string{
		consequenceEnvironmental: "",
		consequenceEconomic:      "",
	}
	for _, segment := range strings.Split(raw, consequencePrefix) {
		if len([]rune(segment)) < 2 {
			continue
		}
		kind, content, _ := strings.Cut(segment, ",")
		out[kind] = strings.TrimSuffix(content, ",")
	}
	return out
}

func parseDate(raw string) *time.Time {
	for _, layout := range ariaDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
