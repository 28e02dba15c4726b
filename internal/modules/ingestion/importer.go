// Package ingestion loads curated knowledge documents into the knowledge
// repository used by retrieval.
package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/domain/knowledge"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

var docNamespace = uuid.MustParse("6f1c2a9e-3b7d-4c55-9a0e-2d8f4b1e7c30")

type Stats struct {
	Files    int
	Imported int
	Skipped  int
	Failed   int
}

type Importer struct {
	repo   repos.KnowledgeRepo
	log    *logger.Logger
	dryRun bool
}

func NewImporter(repo repos.KnowledgeRepo, log *logger.Logger, dryRun bool) *Importer {
	return &Importer{repo: repo, log: log.With("module", "KnowledgeImporter"), dryRun: dryRun}
}

// Import reads every file from src. A file that fails to parse is counted and
// skipped; a repository write failure aborts the run.
func (im *Importer) Import(ctx context.Context, src Source) (Stats, error) {
	var st Stats
	names, err := src.List(ctx)
	if err != nil {
		return st, fmt.Errorf("list source: %w", err)
	}
	for _, name := range names {
		st.Files++
		data, err := src.Read(ctx, name)
		if err != nil {
			im.log.Warn("read failed", "file", name, "error", err)
			st.Failed++
			continue
		}
		docs, err := ParseDocuments(name, data)
		if err != nil {
			im.log.Warn("parse failed", "file", name, "error", err)
			st.Failed++
			continue
		}
		for i := range docs {
			doc, ok := normalize(docs[i], name)
			if !ok {
				st.Skipped++
				continue
			}
			if im.dryRun {
				im.log.Info("would import", "id", doc.ID, "category", doc.Category, "file", name)
				st.Imported++
				continue
			}
			if err := im.repo.Put(ctx, &doc); err != nil {
				return st, fmt.Errorf("put %s: %w", doc.ID, err)
			}
			st.Imported++
		}
	}
	im.log.Info("knowledge import finished", "files", st.Files, "imported", st.Imported, "skipped", st.Skipped, "failed", st.Failed, "dry_run", im.dryRun)
	return st, nil
}

type documentSet struct {
	Documents []knowledge.Document `json:"documents" yaml:"documents"`
}

// ParseDocuments accepts a list of documents, a single document, or an
// object with a "documents" list, in YAML or JSON.
func ParseDocuments(name string, data []byte) ([]knowledge.Document, error) {
	format, err := formatOf(name)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	unmarshal := yaml.Unmarshal
	if format == "json" {
		unmarshal = json.Unmarshal
	}

	var list []knowledge.Document
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var set documentSet
	if err := unmarshal(data, &set); err == nil && len(set.Documents) > 0 {
		return set.Documents, nil
	}
	var one knowledge.Document
	if err := unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return []knowledge.Document{one}, nil
}

func normalize(d knowledge.Document, file string) (knowledge.Document, bool) {
	d.Content = strings.TrimSpace(d.Content)
	if d.Content == "" {
		return d, false
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.Trim(strings.TrimSpace(d.Category), "/")
	if d.Category == "" {
		d.Category = "general"
	}
	if d.Source == "" {
		d.Source = path.Base(strings.ReplaceAll(file, "\\", "/"))
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		d.ID = uuid.NewSHA1(docNamespace, []byte(d.Category+"\x00"+d.Content)).String()
	}
	tags := d.Tags[:0]
	for _, t := range d.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	d.Tags = tags
	d.Embedding = nil
	return d, true
}
