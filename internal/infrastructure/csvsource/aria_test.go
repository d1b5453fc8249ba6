package csvsource

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"AccidentLoader/internal/source"
)

const ariaExport = `Base ARIA - export
Requete 10905
ligne 3
ligne 4
ligne 5
ligne 6
ligne 7
Numéro ARIA;Titre;Date;Départment;Commune;Pays;Conséquences
1001;Fuite d'ammoniac;12/03/2021;69;Lyon;FRANCE;"CONSÉQUENCES ENVIRONNEMENTALES,Pollution,"
1002;Incendie d'entrepôt;01/07/2022;13;Marseille;FRANCE;
1003;Explosion;05/09/2023;59;Lille;FRANCE;
`

func encodeCP1252(t *testing.T, text string) []byte {
	t.Helper()
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	return encoded
}

func TestDecodeWindows1252(t *testing.T) {
	t.Parallel()

	records, err := Decode(context.Background(), bytes.NewReader(encodeCP1252(t, ariaExport)), 7, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "1001", records[0].Get("Numéro ARIA"))
	assert.Equal(t, "69", records[0].Get("Départment"))
	assert.Equal(t, "CONSÉQUENCES ENVIRONNEMENTALES,Pollution,", records[0].Get("Conséquences"))
	assert.Equal(t, "Marseille", records[1].Get("Commune"))
}

func TestDecodeLimit(t *testing.T) {
	t.Parallel()

	records, err := Decode(context.Background(), bytes.NewReader(encodeCP1252(t, ariaExport)), 7, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDecodeShortPreamble(t *testing.T) {
	t.Parallel()

	_, err := Decode(context.Background(), bytes.NewReader(encodeCP1252(t, "one line\n")), 7, 0)
	require.Error(t, err)
}

func TestAriaCSVFetch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "accidents.csv")
	require.NoError(t, os.WriteFile(path, encodeCP1252(t, ariaExport), 0o644))

	src := NewAriaCSV(path, 7, nil)
	assert.Equal(t, "aria-csv", src.Name())

	records, err := src.Fetch(context.Background(), source.Request{Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Fuite d'ammoniac", records[0].Get("Titre"))
}
