package httpapi

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"pkt.systems/sandpit/schema"
)

//go:embed templates/*.go.txt
var embeddedTemplates embed.FS

const templateSuffix = ".go.txt"

// Templates returns the ids of the built-in templates, sorted.
func Templates() []schema.TemplateID {
	entries, err := fs.ReadDir(embeddedTemplates, "templates")
	if err != nil {
		return nil
	}
	ids := make([]schema.TemplateID, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), templateSuffix); ok {
			ids = append(ids, schema.TemplateID(name))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func loadTemplate(id schema.TemplateID) (string, error) {
	normalized, err := schema.NormalizeTemplateID(string(id))
	if err != nil {
		return "", err
	}
	data, err := embeddedTemplates.ReadFile(path.Join("templates", string(normalized)+templateSuffix))
	if err != nil {
		return "", schema.ErrTemplateNotFound
	}
	return string(data), nil
}
