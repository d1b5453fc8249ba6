package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/extraction"
)

const testNamespace = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type scriptedService struct {
	calls   int
	answers map[string]string
	err     error
}

func (s *scriptedService) Invoke(_ context.Context, _, prompt string, _ extraction.OutputSchema) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for prefix, answer := range s.answers {
		if strings.HasPrefix(prompt, prefix) {
			return json.RawMessage(answer), nil
		}
	}
	return json.RawMessage(`{"response": 0}`), nil
}

func newIDs(t *testing.T) IDGenerator {
	t.Helper()
	ids, err := NewIDGenerator(testNamespace)
	require.NoError(t, err)
	return ids
}

func ladderRow() domain.RawRecord {
	return domain.RawRecord{
		domain.EpiceaDossier:     "27709",
		domain.EpiceaCTN:         "D - Services, commerces et industries de l'alimentation",
		domain.EpiceaEnterprise:  "1091Z - Fabrication d'aliments pour animaux de ferme",
		domain.EpiceaEquipment:   "510308 - Autre type d'échelle",
		domain.EpiceaDescription: "Un technicien de maintenance de 64 ans chute d'une échelle. Il est décédé ultérieurement.",
	}
}

func TestEpiceaNormalize(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{answers: map[string]string{
		"Génère un titre":                  `{"response": "Chute mortelle d'une échelle"}`,
		"Extrait les substances":           `{"response": []}`,
		"Extrait le nombre EXACT de morts": `{"response": 1}`,
	}}
	cache := extraction.NewCache(svc, extraction.NewMemoryStore(), "", nil)
	ids := newIDs(t)

	records, err := NewEpicea(cache, ids, nil).Normalize(context.Background(), []domain.RawRecord{ladderRow()})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Services, commerces et industries de l'alimentation", rec.Site.IndustrialActivity)
	assert.Equal(t, "France", rec.Site.Country)
	assert.Equal(t, ids.ID("NULL"), rec.Site.SiteID)
	assert.Equal(t, domain.SiteKey{PlantName: "NULL", Address: "NULL"}, rec.Site.Key())

	assert.Equal(t, "Chute mortelle d'une échelle", rec.Accident.Title)
	assert.Equal(t, domain.SourceEPICEA, rec.Accident.Source)
	assert.Equal(t, "27709", rec.Accident.SourceID)
	assert.Equal(t, ids.ID("Chute mortelle d'une échelle 27709"), rec.Accident.AccidentID)
	assert.Equal(t, rec.Site.SiteID, rec.Accident.SiteID)

	assert.Equal(t, "Fabrication d'aliments pour animaux de ferme", rec.Causes.EventCategory)
	assert.Equal(t, "510308 - Autre type d'échelle", rec.Causes.Failure)
	assert.Equal(t, rec.Accident.AccidentID, rec.Causes.AccidentID)

	require.NotNil(t, rec.Substances)
	assert.Empty(t, rec.Substances)

	assert.Equal(t, 1, rec.HumanConsequences.Fatalities)
	assert.Zero(t, rec.HumanConsequences.Injuries)

	assert.Equal(t, extraction.UnresolvedMarker, rec.OtherConsequences.EnvironmentalImpact)
	assert.Equal(t, extraction.UnresolvedMarker, rec.OtherConsequences.EconomicCost)
	assert.Equal(t, extraction.UnresolvedMarker, rec.OtherConsequences.DisruptionDuration)

	assert.Equal(t, 6, svc.calls)
}

func TestEpiceaNormalizeSubstances(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{answers: map[string]string{
		"Génère un titre":        `{"response": "Fuite de propane"}`,
		"Extrait les substances": `{"response": [{"name": "propane", "cas_number": "74-98-6", "quantity": "3000L", "clp_class": ""}]}`,
	}}
	cache := extraction.NewCache(svc, extraction.NewMemoryStore(), "", nil)

	row := ladderRow()
	row[domain.EpiceaDescription] = "Fuite de 3000L de propane sur une citerne."

	records, err := NewEpicea(cache, newIDs(t), nil).Normalize(context.Background(), []domain.RawRecord{row})
	require.NoError(t, err)
	require.Len(t, records[0].Substances, 1)

	sub := records[0].Substances[0]
	assert.Equal(t, "propane", sub.Name)
	assert.Equal(t, "74-98-6", sub.CASNumber)
	assert.Equal(t, "3000L", sub.Quantity)
	assert.Equal(t, records[0].Accident.AccidentID, sub.AccidentID)
}

func TestEpiceaNormalizeEmptyDescription(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{}
	cache := extraction.NewCache(svc, extraction.NewMemoryStore(), "", nil)

	row := ladderRow()
	row[domain.EpiceaDescription] = ""

	records, err := NewEpicea(cache, newIDs(t), nil).Normalize(context.Background(), []domain.RawRecord{row})
	require.NoError(t, err)

	rec := records[0]
	assert.NotNil(t, rec.Substances)
	assert.Empty(t, rec.Substances)
	assert.Zero(t, rec.HumanConsequences.Fatalities)
	assert.Empty(t, rec.Accident.Title)
	assert.Zero(t, svc.calls)
}

func TestEpiceaNormalizeSharesSite(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{answers: map[string]string{
		"Génère un titre":        `{"response": "Accident"}`,
		"Extrait les substances": `{"response": []}`,
	}}
	cache := extraction.NewCache(svc, extraction.NewMemoryStore(), "", nil)

	second := ladderRow()
	second[domain.EpiceaDossier] = "27710"

	records, err := NewEpicea(cache, newIDs(t), nil).Normalize(context.Background(), []domain.RawRecord{ladderRow(), second})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, records[0].Site.Key(), records[1].Site.Key())
	assert.NotEqual(t, records[0].Accident.AccidentID, records[1].Accident.AccidentID)
}

func TestEpiceaNormalizeAbortsOnServiceError(t *testing.T) {
	t.Parallel()

	store := extraction.NewMemoryStore()
	cache := extraction.NewCache(&scriptedService{err: errors.New("timeout")}, store, "", nil)

	_, err := NewEpicea(cache, newIDs(t), nil).Normalize(context.Background(), []domain.RawRecord{ladderRow()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dossier 27709")
	assert.Zero(t, store.Puts())
}

func TestLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Métallurgie", label("A - Métallurgie"))
	assert.Equal(t, "Bois - papier", label("F - Bois - papier"))
	assert.Equal(t, "sans code", label(" sans code "))
}

func TestNewIDGeneratorRejectsInvalidNamespace(t *testing.T) {
	t.Parallel()

	_, err := NewIDGenerator("not-a-uuid")
	require.Error(t, err)

	ids := newIDs(t)
	assert.Equal(t, ids.ID("same"), ids.ID("same"))
	assert.NotEqual(t, ids.ID("a"), ids.ID("b"))
}

func TestEpiceaForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{answers: map[string]string{
		"Génère un titre":        `{"response": "Chute"}`,
		"Extrait les substances": `{"response": []}`,
	}}
	cache := extraction.NewCache(svc, extraction.NewMemoryStore(), "", nil)
	normalizer := NewEpicea(cache, newIDs(t), nil)
	rows := []domain.RawRecord{ladderRow()}

	_, err := normalizer.Normalize(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 6, svc.calls)

	_, err = normalizer.Normalize(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 6, svc.calls, "second pass is served from the cache")

	_, err = normalizer.WithOptions(extraction.WithForceRefresh()).Normalize(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 12, svc.calls)
}
