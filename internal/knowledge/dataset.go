// Package knowledge implements retrieval-augmented context for TARS:
// YAML Q&A datasets indexed into an embedded vector store and queried per
// conversation turn.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tars/internal/logging"
)

// Entry is one Q&A record from a dataset file.
type Entry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Context  string `yaml:"context,omitempty"`
	Topic    string `yaml:"topic,omitempty"`
}

// datasetFile accepts the two list keys seen in the wild.
type datasetFile struct {
	SeedExamples []Entry `yaml:"seed_examples"`
	Examples     []Entry `yaml:"examples"`
}

// Document is an indexed unit of knowledge.
type Document struct {
	ID     string
	Text   string
	Topic  string
	Source string
}

// topicHints maps filename substrings to topics, used only when a record
// carries no explicit topic field.
var topicHints = []struct {
	substr string
	topic  string
}{
	{"relativity", "relativity"},
	{"qm", "quantum_mechanics"},
	{"quantum", "quantum_mechanics"},
	{"black_hole", "black_holes"},
	{"thermo", "thermodynamics"},
	{"entropy", "entropy"},
	{"cosmology", "cosmology"},
	{"big_bang", "big_bang"},
	{"astrobiology", "astrobiology"},
	{"philosophy", "philosophy"},
	{"mathematics", "mathematics"},
	{"history", "history_of_physics"},
	{"gravitational", "gravitational_physics"},
	{"ethics", "ai_ethics"},
	{"spacecraft", "ai_ethics"},
}

func inferTopic(stem string) string {
	lower := strings.ToLower(stem)
	for _, h := range topicHints {
		if strings.Contains(lower, h.substr) {
			return h.topic
		}
	}
	return "general"
}

// contentHash gives a short stable digest so re-indexing the same record
// produces the same document id.
func contentHash(question, answer string) string {
	sum := sha256.Sum256([]byte(question + answer))
	return hex.EncodeToString(sum[:])[:12]
}

// LoadFile parses one YAML dataset file into documents.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	var df datasetFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}

	examples := df.SeedExamples
	if len(examples) == 0 {
		examples = df.Examples
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	docs := make([]Document, 0, len(examples))
	for i, ex := range examples {
		question := strings.TrimSpace(ex.Question)
		answer := strings.TrimSpace(ex.Answer)
		if question == "" && answer == "" {
			continue
		}

		topic := strings.TrimSpace(ex.Topic)
		if topic == "" {
			topic = inferTopic(stem)
		}

		text := fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer)
		if ctxText := strings.TrimSpace(ex.Context); ctxText != "" {
			text += "\n\nContext: " + ctxText
		}

		docs = append(docs, Document{
			ID:     fmt.Sprintf("%s_%d_%s", stem, i, contentHash(question, answer)),
			Text:   text,
			Topic:  topic,
			Source: filepath.Base(path),
		})
	}
	return docs, nil
}

// LoadDirectory walks a directory tree for YAML dataset files. Files that
// fail to parse are logged and skipped.
func LoadDirectory(dir string) []Document {
	log := logging.Get(logging.CategoryKnowledge)

	var all []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		docs, err := LoadFile(path)
		if err != nil {
			log.Error("failed to load %s: %v", path, err)
			return nil
		}
		log.Info("loaded %d entries from %s", len(docs), filepath.Base(path))
		all = append(all, docs...)
		return nil
	})
	if err != nil {
		log.Warn("dataset directory walk: %v", err)
	}
	return all
}
