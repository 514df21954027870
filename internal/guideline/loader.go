// Runtime YAML -> SQLite ingestion for guideline records.
// YAML is the authoring format; a compiled SQLite store lets deployments
// bulk-load the full corpus at startup without shipping the YAML tree.
package guideline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adscribe/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and persistence of guideline records.
type Loader struct{}

// NewLoader creates a new guideline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// ParseYAML parses a YAML file containing guideline record definitions.
// The file may hold a single record or an array of records.
func (l *Loader) ParseYAML(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var records []*Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		var single Record
		if singleErr := yaml.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		records = []*Record{&single}
	}

	for _, r := range records {
		r.Tier = Tier(strings.ToLower(strings.TrimSpace(string(r.Tier))))
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid record in %s: %w", filepath.Base(path), err)
		}
	}

	return records, nil
}

// LoadDirectory recursively parses all YAML files under a directory.
func (l *Loader) LoadDirectory(dir string) ([]*Record, error) {
	timer := logging.StartTimer(logging.CategoryCorpus, "Loader.LoadDirectory")
	defer timer.Stop()

	var all []*Record
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		records, parseErr := l.ParseYAML(path)
		if parseErr != nil {
			return parseErr
		}
		all = append(all, records...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus directory %s: %w", dir, err)
	}

	logging.Get(logging.CategoryCorpus).Info("Loaded %d records from %s", len(all), dir)
	return all, nil
}

// DirectoryLoadFunc returns a LoadFunc reading the given YAML directory,
// suitable for backing a Cache.
func DirectoryLoadFunc(dir string) LoadFunc {
	loader := NewLoader()
	return func(ctx context.Context) ([]*Record, error) {
		return loader.LoadDirectory(dir)
	}
}

// =============================================================================
// SQLITE STORE
// =============================================================================

// Store persists guideline records in SQLite. List-valued fields are
// stored as JSON text columns.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) a SQLite corpus store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus store %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS guideline_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL UNIQUE,
			tier TEXT NOT NULL,
			instruction TEXT NOT NULL,
			short_form TEXT,

			-- Applicability (JSON arrays)
			statuses TEXT,
			categories TEXT,
			methods TEXT,

			-- Relevance and constraints (JSON arrays)
			keywords TEXT,
			forbidden_phrases TEXT,
			examples TEXT,

			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_records_tier ON guideline_records(tier);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create guideline tables: %w", err)
	}
	return nil
}

// Save upserts a record into the store.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	statuses, err := marshalList(r.Applicability.Statuses)
	if err != nil {
		return err
	}
	categories, err := marshalList(r.Applicability.Categories)
	if err != nil {
		return err
	}
	methods, err := marshalList(r.Applicability.Methods)
	if err != nil {
		return err
	}
	keywords, err := marshalList(r.Keywords)
	if err != nil {
		return err
	}
	forbidden, err := marshalList(r.ForbiddenPhrases)
	if err != nil {
		return err
	}

	var examples []byte
	if len(r.Examples) > 0 {
		examples, err = json.Marshal(r.Examples)
		if err != nil {
			return fmt.Errorf("failed to marshal examples for record %q: %w", r.ID, err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guideline_records
			(record_id, tier, instruction, short_form, statuses, categories, methods, keywords, forbidden_phrases, examples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			tier = excluded.tier,
			instruction = excluded.instruction,
			short_form = excluded.short_form,
			statuses = excluded.statuses,
			categories = excluded.categories,
			methods = excluded.methods,
			keywords = excluded.keywords,
			forbidden_phrases = excluded.forbidden_phrases,
			examples = excluded.examples`,
		r.ID, string(r.Tier), r.Instruction, r.ShortForm,
		statuses, categories, methods, keywords, forbidden, nullableBlob(examples),
	)
	if err != nil {
		return fmt.Errorf("failed to save record %q: %w", r.ID, err)
	}
	return nil
}

// SaveAll persists a batch of records in one transaction.
func (s *Store) SaveAll(ctx context.Context, records []*Record) (int, error) {
	saved := 0
	for _, r := range records {
		if err := s.Save(ctx, r); err != nil {
			logging.Get(logging.CategoryCorpus).Error("Failed to store record %s: %v", r.ID, err)
			continue
		}
		saved++
	}
	logging.Get(logging.CategoryCorpus).Info("Stored %d/%d records", saved, len(records))
	return saved, nil
}

// LoadAll reads the full record set. The corpus is bulk-loaded at
// startup; no incremental load path exists.
func (s *Store) LoadAll(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, tier, instruction, short_form,
		       statuses, categories, methods, keywords, forbidden_phrases, examples
		FROM guideline_records ORDER BY record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guideline records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r         Record
			shortForm sql.NullString
			statuses  sql.NullString
			cats      sql.NullString
			methods   sql.NullString
			keywords  sql.NullString
			forbidden sql.NullString
			examples  sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.Tier, &r.Instruction, &shortForm,
			&statuses, &cats, &methods, &keywords, &forbidden, &examples); err != nil {
			return nil, fmt.Errorf("failed to scan guideline record: %w", err)
		}

		r.ShortForm = shortForm.String
		if r.Applicability.Statuses, err = unmarshalList(statuses); err != nil {
			return nil, err
		}
		if r.Applicability.Categories, err = unmarshalList(cats); err != nil {
			return nil, err
		}
		if r.Applicability.Methods, err = unmarshalList(methods); err != nil {
			return nil, err
		}
		if r.Keywords, err = unmarshalList(keywords); err != nil {
			return nil, err
		}
		if r.ForbiddenPhrases, err = unmarshalList(forbidden); err != nil {
			return nil, err
		}
		if examples.Valid && examples.String != "" {
			if err := json.Unmarshal([]byte(examples.String), &r.Examples); err != nil {
				return nil, fmt.Errorf("failed to parse examples for record %q: %w", r.ID, err)
			}
		}

		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// StoreLoadFunc returns a LoadFunc reading the SQLite store, suitable for
// backing a Cache.
func StoreLoadFunc(s *Store) LoadFunc {
	return func(ctx context.Context) ([]*Record, error) {
		return s.LoadAll(ctx)
	}
}

func marshalList(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(col.String), &values); err != nil {
		return nil, fmt.Errorf("failed to parse list column: %w", err)
	}
	return values, nil
}

func nullableBlob(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
