package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/xuri/excelize/v2"
)

var ErrNoItemSheet = errors.New("export: workbook has no item rows")

// ReadItemSeeds reads catalog rows from the Items sheet, or the first sheet
// when there is none. Columns are matched by header name, case-insensitive,
// so a workbook produced by WriteWorkbook can be read back. Only ID is
// required; learning columns are ignored.
func ReadItemSeeds(r io.Reader) ([]progress.ItemSeed, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	list := f.GetSheetList()
	if len(list) == 0 {
		return nil, ErrNoItemSheet
	}
	sheet := list[0]
	for _, name := range list {
		if name == SheetItems {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrNoItemSheet
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("%w: missing ID column", ErrNoItemSheet)
	}

	seeds := make([]progress.ItemSeed, 0, len(rows)-1)
	for i, row := range rows[1:] {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		id := get("id")
		if id == "" {
			continue
		}

		seed := progress.ItemSeed{
			ID:         id,
			Kind:       models.ItemKind(strings.ToLower(get("kind"))),
			Difficulty: models.Difficulty(strings.ToLower(get("difficulty"))),
			Category:   get("category"),
		}
		if v := get("section"); v != "" {
			section, err := models.ParseSection(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			seed.Section = section
		}
		if term := get("term"); term != "" {
			seed.Word = &models.WordDetails{Term: term, Reading: get("reading"), Meaning: get("meaning")}
		}
		if char := get("character"); char != "" {
			seed.Kanji = &models.KanjiDetails{
				Character:   char,
				Onyomi:      splitList(get("onyomi")),
				Kunyomi:     splitList(get("kunyomi")),
				Meanings:    splitList(get("meanings")),
				StrokeCount: atoi(get("strokecount")),
				JLPTLevel:   atoi(get("jlpt")),
			}
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
