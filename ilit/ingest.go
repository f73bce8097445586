package ilit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
)

// =============================================================================
// INGESTION - TabularSource -> Normalize -> Classify -> PolicyStore
// =============================================================================

// ImportMode selects how imported records are written.
type ImportMode string

const (
	// ImportInsert inserts every row as a new record (atomic).
	ImportInsert ImportMode = "insert"
	// ImportUpsert merges rows into stored records sharing the same key.
	ImportUpsert ImportMode = "upsert"
)

// IngestOptions tunes one import.
type IngestOptions struct {
	Mode ImportMode
	Key  UpsertKey

	// Mapping is a user-chosen field -> header mapping applied on top of
	// the alias resolution.
	Mapping map[Field]string

	// Name labels the import in the activity log (usually the file name).
	Name string
}

// SkippedRow explains why one sheet row produced no record.
type SkippedRow struct {
	Row    int // 1-based sheet row number, header is row 1
	Reason string
}

// IngestResult reports the outcome of an import. Counts are always present,
// even when the batch fails to persist.
type IngestResult struct {
	RowsRead     int
	RowsSkipped  int
	RowsInserted int
	RowsUpdated  int
	Skipped      []SkippedRow
	Unmapped     []Field
	LeadDays     int
	Clients      int
}

const skipReasonNoName = "missing ILIT name"

// Ingest reads every row from src, normalizes and classifies it, and
// persists the batch. Blank rows are ignored entirely. Rows without an ILIT
// name are skipped and counted. A persistence failure aborts the whole batch
// and is returned wrapped in ErrPersistence alongside the row counts.
func (s *Service) Ingest(ctx context.Context, src TabularSource, opts IngestOptions) (IngestResult, error) {
	var result IngestResult

	headers := src.Headers()
	if len(headers) == 0 {
		return result, ErrEmptySheet
	}

	cols := ResolveColumns(headers, s.Aliases)
	cols, err := ApplyMapping(cols, headers, opts.Mapping)
	if err != nil {
		return result, err
	}
	result.Unmapped = cols.Unmapped()

	leadDays, err := s.leadDays(ctx)
	if err != nil {
		return result, err
	}
	result.LeadDays = leadDays
	today := s.today()

	var records []PolicyRecord
	rowNum := 1
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read row %d: %w", rowNum+1, err)
		}
		rowNum++

		if IsBlankRow(row) {
			continue
		}
		result.RowsRead++

		record, ok := Normalize(row, cols, leadDays)
		if !ok {
			result.RowsSkipped++
			result.Skipped = append(result.Skipped, SkippedRow{Row: rowNum, Reason: skipReasonNoName})
			log.Printf("[Import] Row %d skipped: %s", rowNum, skipReasonNoName)
			continue
		}
		record.Status = ClassifyValue(record, today, leadDays)
		records = append(records, record)
	}

	if len(records) == 0 {
		log.Printf("[Import] No valid policies in %d rows", result.RowsRead)
		return result, nil
	}

	switch opts.Mode {
	case ImportUpsert:
		key := opts.Key
		if key == "" {
			key = KeyPolicyNumber
		}
		res, err := s.Policies.UpsertByKey(ctx, key, records)
		if err != nil {
			return result, fmt.Errorf("%w: upsert policies: %w", ErrPersistence, err)
		}
		result.RowsInserted = res.Inserted
		result.RowsUpdated = res.Updated
	default:
		n, err := s.Policies.InsertMany(ctx, records)
		if err != nil {
			return result, fmt.Errorf("%w: insert policies: %w", ErrPersistence, err)
		}
		result.RowsInserted = n
	}

	result.Clients = s.upsertClients(ctx, records)

	log.Printf("[Import] %s: %d read, %d skipped, %d inserted, %d updated (lead time %d days)",
		opts.Name, result.RowsRead, result.RowsSkipped, result.RowsInserted, result.RowsUpdated, leadDays)
	s.audit(ctx, AuditImport, "", "Imported %s: %d inserted, %d updated, %d skipped",
		opts.Name, result.RowsInserted, result.RowsUpdated, result.RowsSkipped)
	return result, nil
}

// upsertClients records the distinct insured names of an import.
// Failure here never fails the import.
func (s *Service) upsertClients(ctx context.Context, records []PolicyRecord) int {
	if s.Clients == nil {
		return 0
	}
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if r.InsuredName == "" || seen[r.InsuredName] {
			continue
		}
		seen[r.InsuredName] = true
		names = append(names, r.InsuredName)
	}
	if len(names) == 0 {
		return 0
	}
	sort.Strings(names)

	n, err := s.Clients.UpsertClients(ctx, names)
	if err != nil {
		log.Printf("[Import] Client upsert failed: %v", err)
		return 0
	}
	return n
}
