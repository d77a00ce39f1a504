package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// supportedLanguages are the translation targets a catalog should carry.
var supportedLanguages = []string{"en", "fr", "de"}

// loadCatalogs reads every catalog file under dir. Entries without a prompt
// are dropped; missing translations are warned about but kept, since the
// flashcard renders an empty string for them (upstream behaviour).
func loadCatalogs(dir string) (map[string]*Catalog, []string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no catalog files in %s", dir)
	}
	sort.Strings(files)

	catalogs := make(map[string]*Catalog, len(files))
	order := make([]string, 0, len(files))
	for _, file := range files {
		cat, err := loadCatalog(file)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog %s: %w", file, err)
		}
		catalogs[cat.Name] = cat
		order = append(order, cat.Name)
		logInfo("Loaded catalog %q with %d words", cat.Name, len(cat.Words))
	}
	return catalogs, order, nil
}

// loadCatalog reads and validates a single catalog file.
func loadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	if cat.Name == "" {
		cat.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if cat.DisplayName == "" {
		cat.DisplayName = strings.ToUpper(cat.Name[:1]) + cat.Name[1:]
	}

	cat.Words = lo.Filter(cat.Words, func(entry VocabularyEntry, _ int) bool {
		if entry.Text == "" {
			logWarn("Skipping entry with empty text in catalog %q", cat.Name)
			return false
		}
		return true
	})
	if len(cat.Words) == 0 {
		return nil, fmt.Errorf(ErrorEmptyCatalog)
	}

	for _, warning := range validateCatalog(&cat) {
		logWarn("%s", warning)
	}
	return &cat, nil
}

// validateCatalog reports data gaps: duplicate prompts and missing
// translations. Gaps are warnings, not errors: the UI renders an empty
// label for them and the quiz skips them as distractors.
func validateCatalog(cat *Catalog) []string {
	var warnings []string

	seen := make(map[string]struct{}, len(cat.Words))
	for _, entry := range cat.Words {
		key := strings.ToLower(entry.Text)
		if _, dup := seen[key]; dup {
			warnings = append(warnings, fmt.Sprintf("catalog %q: duplicate entry %q", cat.Name, entry.Text))
		}
		seen[key] = struct{}{}

		for _, lang := range supportedLanguages {
			if translationFor(entry, lang) == "" {
				warnings = append(warnings,
					fmt.Sprintf("catalog %q: entry %q has no %s translation", cat.Name, entry.Text, lang))
			}
		}
	}

	for _, lang := range supportedLanguages {
		labels := lo.Map(cat.Words, func(entry VocabularyEntry, _ int) string {
			return translationFor(entry, lang)
		})
		distinct := lo.Uniq(lo.Filter(labels, func(l string, _ int) bool { return l != "" }))
		if len(distinct) > 0 && len(distinct) < 2 {
			warnings = append(warnings,
				fmt.Sprintf("catalog %q: only %d distinct %s label(s); quiz questions degrade to a single option",
					cat.Name, len(distinct), lang))
		}
	}
	return warnings
}

// catalogFor resolves a category name to its loaded catalog.
func (app *App) catalogFor(name string) (*Catalog, bool) {
	cat, ok := app.Catalogs[name]
	return cat, ok
}
