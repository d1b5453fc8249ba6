package parser

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/source"
)

// dossierTableIndex is the position of the record table among table.tablein elements.
const dossierTableIndex = 2

// EpiceaDirectory reads EPICEA dossier pages previously saved as HTML files.
type EpiceaDirectory struct {
	root      string
	extension string
	logger    *slog.Logger
}

var _ source.Source = (*EpiceaDirectory)(nil)

// NewEpiceaDirectory walks root recursively; extension defaults to ".html".
func NewEpiceaDirectory(root, extension string, logger *slog.Logger) *EpiceaDirectory {
	if extension == "" {
		extension = ".html"
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &EpiceaDirectory{root: root, extension: extension, logger: logger}
}

// Name identifies the source inside the registry.
func (e *EpiceaDirectory) Name() string {
	return "epicea-html"
}

// Fetch parses every page under the root directory and returns the dossiers
// at or above req.FromID in ascending dossier number, capped at req.Limit.
// Dossiers without a numeric number sort last.
func (e *EpiceaDirectory) Fetch(ctx context.Context, req source.Request) ([]domain.RawRecord, error) {
	if _, err := os.Stat(e.root); err != nil {
		return nil, fmt.Errorf("epicea directory: %w", err)
	}

	var pages []parsedDossier
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), e.extension) {
			return nil
		}

		record, err := parseFile(path)
		if err != nil {
			return fmt.Errorf("page %s: %w", path, err)
		}

		id, convErr := strconv.Atoi(record.Get(domain.EpiceaDossier))
		numeric := convErr == nil
		if numeric && req.FromID > 0 && id < req.FromID {
			e.debug("skip already loaded dossier", "dossier", id, "from", req.FromID)
			return nil
		}

		pages = append(pages, parsedDossier{record: record, id: id, numeric: numeric})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(pages, compareDossiers)
	if req.Limit > 0 && len(pages) > req.Limit {
		pages = pages[:req.Limit]
	}

	records := make([]domain.RawRecord, 0, len(pages))
	for _, p := range pages {
		records = append(records, p.record)
	}

	e.debug("epicea pages parsed", "root", e.root, "count", len(records))
	return records, nil
}

type parsedDossier struct {
	record  domain.RawRecord
	id      int
	numeric bool
}

func compareDossiers(a, b parsedDossier) int {
	switch {
	case a.numeric && !b.numeric:
		return -1
	case !a.numeric && b.numeric:
		return 1
	case !a.numeric:
		return 0
	default:
		return cmp.Compare(a.id, b.id)
	}
}

func parseFile(path string) (domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ParsePage(f)
}

// ParsePage extracts the label/value rows of an EPICEA dossier page.
func ParsePage(r io.Reader) (domain.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	tables := doc.Find("table.tablein")
	if tables.Length() <= dossierTableIndex {
		return nil, fmt.Errorf("expected at least %d table.tablein elements, got %d", dossierTableIndex+1, tables.Length())
	}

	record := domain.RawRecord{}
	tables.Eq(dossierTableIndex).Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := cleanLabel(cells.Eq(0).Text())
		if label == "" {
			return
		}
		record[label] = strings.TrimSpace(cells.Eq(1).Text())
	})

	return record, nil
}

func cleanLabel(raw string) string {
	label := strings.TrimSpace(raw)
	label = strings.ReplaceAll(label, "\u00a0", " ")
	label = strings.ReplaceAll(label, " :", "")
	return strings.TrimSpace(label)
}

func (e *EpiceaDirectory) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
