package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
)

// LedgerStore is the spreadsheet-backed record store for requests.
//
// Lookups scan every data row of each configured tab, so their cost grows
// linearly with the ledger. A process-local index short-circuits repeat
// lookups; every indexed hit is re-read and verified before it is trusted.
type LedgerStore interface {
	// Append writes a new row and returns the stored record with its row number
	Append(ctx context.Context, target entity.SheetTarget, rec *entity.RequestRecord) (*entity.RequestRecord, error)
	// Update applies a column-scoped patch to a row
	Update(ctx context.Context, target entity.SheetTarget, rowNumber int, patch entity.RecordPatch) error
	// Mutate derives the patch from the row as currently stored and returns the written record
	Mutate(ctx context.Context, target entity.SheetTarget, rowNumber int, fn MutateFunc) (*entity.RequestRecord, error)
	FindByThread(ctx context.Context, threadID string) (*entity.RequestRecord, error)
	FindByRequestID(ctx context.Context, requestID string) (*entity.RequestRecord, error)
	// Reindex rebuilds the lookup index from a full read of every target
	Reindex(ctx context.Context) (int, error)
}

// MutateFunc computes a patch from the freshly read record. Returning an
// error aborts the update without writing.
type MutateFunc func(current *entity.RequestRecord) (entity.RecordPatch, error)

// LedgerConfig configures a LedgerStore
type LedgerConfig struct {
	Targets         SheetTargets
	BaseURL         string
	DefaultCurrency string
	Location        *time.Location
	Remote          RemotePolicy
}

type ledgerStoreImpl struct {
	values port.SheetValues
	cfg    LedgerConfig
	codec  RowCodec
	index  *ledgerIndex
	locks  *rowLocks
	now    func() time.Time
	logger Logger
}

// NewLedgerStore creates a new LedgerStore over a SheetValues backend
func NewLedgerStore(values port.SheetValues, cfg LedgerConfig, logger Logger) LedgerStore {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ledgerStoreImpl{
		values: values,
		cfg:    cfg,
		codec: RowCodec{
			BaseURL:         cfg.BaseURL,
			DefaultCurrency: cfg.DefaultCurrency,
		},
		index:  newLedgerIndex(),
		locks:  newRowLocks(),
		now:    time.Now,
		logger: loggerOrNop(logger),
	}
}

// Append writes a new row at the end of the target tab in a single call
func (s *ledgerStoreImpl) Append(ctx context.Context, target entity.SheetTarget, rec *entity.RequestRecord) (*entity.RequestRecord, error) {
	stored := *rec
	stored.SpreadsheetID = target.SpreadsheetID
	stored.TabName = target.TabName
	stored.RowLink = ""
	if !stored.Status.IsValid() {
		stored.Status = workflow.StatePending
	}
	if stored.Currency == "" {
		stored.Currency = s.cfg.DefaultCurrency
	}
	now := s.timestamp()
	if stored.CreatedAt == "" {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt == "" {
		stored.UpdatedAt = now
	}

	cells := EncodeRow(RecordToRow(&stored))
	var updatedRange string
	err := s.cfg.Remote.Write(ctx, "append ledger row", func(ctx context.Context) error {
		var err error
		updatedRange, err = s.values.Append(ctx, target.SpreadsheetID, appendRange(target.TabName), [][]string{cells})
		return err
	})
	if err != nil {
		return nil, err
	}

	stored.RowNumber = ParseRowNumber(updatedRange)
	if stored.RowNumber == 0 {
		s.logger.Warn("Could not parse appended row number",
			"request_id", stored.RequestID, "updated_range", updatedRange)
		return &stored, nil
	}

	stored.RowLink = BuildRowLink(s.cfg.BaseURL, target, stored.RowNumber)
	s.index.put(stored.RequestID, stored.ThreadID, rowLocation{target: target, row: stored.RowNumber})
	return &stored, nil
}

// Update performs a read-modify-write of a single row
func (s *ledgerStoreImpl) Update(ctx context.Context, target entity.SheetTarget, rowNumber int, patch entity.RecordPatch) error {
	_, err := s.Mutate(ctx, target, rowNumber, func(*entity.RequestRecord) (entity.RecordPatch, error) {
		return patch, nil
	})
	return err
}

// Mutate reads the row, applies the patch returned by fn and writes it back.
// Mutations of the same row are serialized so concurrent patches never drop
// each other's columns and fn always sees the last written state.
func (s *ledgerStoreImpl) Mutate(ctx context.Context, target entity.SheetTarget, rowNumber int, fn MutateFunc) (*entity.RequestRecord, error) {
	if rowNumber <= 0 {
		return nil, fmt.Errorf("update %s: %w", target.TabName, ErrUnknownRow)
	}

	unlock := s.locks.Lock(rowKey(target, rowNumber))
	defer unlock()

	rng := rowRange(target.TabName, rowNumber)
	var rows [][]string
	err := s.cfg.Remote.Read(ctx, "read ledger row", func(ctx context.Context) error {
		var err error
		rows, err = s.values.Get(ctx, target.SpreadsheetID, rng)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || DecodeRow(rows[0]).IsEmpty() {
		return nil, fmt.Errorf("row %d in %s/%s: %w", rowNumber, target.SpreadsheetID, target.TabName, ErrRowNotFound)
	}

	current := DecodeRow(rows[0])
	patch, err := fn(s.codec.RowToRecord(current, target, rowNumber))
	if err != nil {
		return nil, err
	}

	row := applyPatch(current, patch)
	if row.RowLink == "" {
		row.RowLink = BuildRowLink(s.cfg.BaseURL, target, rowNumber)
	}
	if patch.UpdatedAt != "" {
		row.UpdatedAt = patch.UpdatedAt
	} else {
		row.UpdatedAt = s.timestamp()
	}

	err = s.cfg.Remote.Write(ctx, "update ledger row", func(ctx context.Context) error {
		return s.values.Update(ctx, target.SpreadsheetID, rng, [][]string{EncodeRow(row)})
	})
	if err != nil {
		return nil, err
	}

	s.index.put(row.RequestID, row.ThreadID, rowLocation{target: target, row: rowNumber})
	return s.codec.RowToRecord(row, target, rowNumber), nil
}

// FindByThread returns the record whose thread id column matches
func (s *ledgerStoreImpl) FindByThread(ctx context.Context, threadID string) (*entity.RequestRecord, error) {
	return s.find(ctx, keyThreadID, threadID)
}

// FindByRequestID returns the record whose request id column matches
func (s *ledgerStoreImpl) FindByRequestID(ctx context.Context, requestID string) (*entity.RequestRecord, error) {
	return s.find(ctx, keyRequestID, requestID)
}

func (s *ledgerStoreImpl) find(ctx context.Context, key lookupKey, value string) (*entity.RequestRecord, error) {
	if value == "" {
		return nil, fmt.Errorf("lookup by empty %s: %w", key, ErrRequestNotFound)
	}

	if loc, ok := s.index.lookup(key, value); ok {
		rec, err := s.readIndexed(ctx, loc, key, value)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		s.index.forget(key, value)
	}

	for _, target := range s.cfg.Targets.All() {
		rec, err := s.scan(ctx, target, key, value)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", key, value, ErrRequestNotFound)
}

// readIndexed returns nil without error when the row no longer matches
func (s *ledgerStoreImpl) readIndexed(ctx context.Context, loc rowLocation, key lookupKey, value string) (*entity.RequestRecord, error) {
	var rows [][]string
	err := s.cfg.Remote.Read(ctx, "read indexed ledger row", func(ctx context.Context) error {
		var err error
		rows, err = s.values.Get(ctx, loc.target.SpreadsheetID, rowRange(loc.target.TabName, loc.row))
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := DecodeRow(rows[0])
	if !key.matches(row, value) {
		return nil, nil
	}
	return s.codec.RowToRecord(row, loc.target, loc.row), nil
}

// scan reads the whole tab, indexing every row it passes
func (s *ledgerStoreImpl) scan(ctx context.Context, target entity.SheetTarget, key lookupKey, value string) (*entity.RequestRecord, error) {
	rows, err := s.readAll(ctx, target)
	if err != nil {
		return nil, err
	}
	// index 0 is the header row
	for i := 1; i < len(rows); i++ {
		row := DecodeRow(rows[i])
		rowNumber := i + 1
		s.index.put(row.RequestID, row.ThreadID, rowLocation{target: target, row: rowNumber})
		if key.matches(row, value) {
			return s.codec.RowToRecord(row, target, rowNumber), nil
		}
	}
	return nil, nil
}

func (s *ledgerStoreImpl) readAll(ctx context.Context, target entity.SheetTarget) ([][]string, error) {
	var rows [][]string
	err := s.cfg.Remote.Read(ctx, "scan ledger", func(ctx context.Context) error {
		var err error
		rows, err = s.values.Get(ctx, target.SpreadsheetID, fullRange(target.TabName))
		return err
	})
	return rows, err
}

// Reindex reads every configured target and refreshes the index
func (s *ledgerStoreImpl) Reindex(ctx context.Context) (int, error) {
	var errs []error
	for _, target := range s.cfg.Targets.All() {
		rows, err := s.readAll(ctx, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", target.SpreadsheetID, target.TabName, err))
			continue
		}
		for i := 1; i < len(rows); i++ {
			row := DecodeRow(rows[i])
			s.index.put(row.RequestID, row.ThreadID, rowLocation{target: target, row: i + 1})
		}
	}
	return s.index.len(), errors.Join(errs...)
}

func (s *ledgerStoreImpl) timestamp() string {
	return FormatTimestamp(s.now(), s.cfg.Location)
}

func applyPatch(row Row, patch entity.RecordPatch) Row {
	if patch.Remarks != nil {
		row.Remarks = *patch.Remarks
	}
	if patch.FolderID != nil {
		row.FolderID = *patch.FolderID
	}
	if patch.FileName != nil {
		row.FileName = *patch.FileName
	}
	if patch.FileLink != nil {
		row.FileLink = *patch.FileLink
	}
	if patch.FileID != nil {
		row.FileID = *patch.FileID
	}
	if patch.Status != nil {
		row.Status = patch.Status.String()
	}
	return row
}

func rowKey(target entity.SheetTarget, rowNumber int) string {
	return target.SpreadsheetID + "|" + target.TabName + "|" + strconv.Itoa(rowNumber)
}
