// Package editor reconciles edited tables against the cached dataset,
// persists the workbook locally, and pushes it to the remote store under the
// version-token protocol.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"sheetboard/dataset"
	"sheetboard/errs"
	"sheetboard/remote"
)

// Editor owns the session-scoped version token. The token belongs to this
// process alone; it is never shared or persisted.
type Editor struct {
	mu     sync.Mutex
	path   string
	cache  *dataset.Cache
	client remote.Client // nil when remote sync is not configured
	token  string
}

// New returns an editor over the local workbook at path. client may be nil,
// in which case every save is local-only.
func New(path string, cache *dataset.Cache, client remote.Client) *Editor {
	return &Editor{path: path, cache: cache, client: client}
}

// RemoteConfigured reports whether a remote client is wired in.
func (e *Editor) RemoteConfigured() bool {
	return e.client != nil
}

// VersionToken returns the currently held token, empty when none has been
// fetched yet.
func (e *Editor) VersionToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// FetchRemote downloads the remote workbook, overwrites the local file with
// the fetched bytes, invalidates the cache, and stores the new token.
func (e *Editor) FetchRemote(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("remote sync is not configured")
	}

	content, token, err := e.client.Fetch(ctx)
	if err != nil {
		return err
	}

	if err := os.WriteFile(e.path, content, 0644); err != nil {
		log.Printf("ERROR: Failed to overwrite local workbook '%s': %v", e.path, err)
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	e.cache.Invalidate()

	e.mu.Lock()
	e.token = token
	e.mu.Unlock()

	return nil
}

// UpdateSheet replaces the named sheet, rewrites the whole workbook locally,
// invalidates the cache, and — when a remote is configured and a token is
// held — pushes the serialized workbook. A successful push advances the
// token; a conflict leaves the stale token in place so the caller can decide
// between re-fetching and forcing.
func (e *Editor) UpdateSheet(ctx context.Context, name string, table *dataset.Table) error {
	ds, err := e.cache.Load()
	if err != nil {
		return err
	}

	table = table.Clone()
	if current, found := ds.Sheet(name); found && !current.SameColumns(table) {
		// A free-form edit changed the column set. Tolerated, but the sheet
		// degrades to text so nothing is silently coerced into a number.
		table.CoerceText()
	}

	updated := dataset.NewDataset()
	for _, sheetName := range ds.Names {
		updated.SetSheet(sheetName, ds.Sheets[sheetName])
	}
	updated.SetSheet(name, table)

	if err := dataset.WriteWorkbook(e.path, updated); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	e.cache.Invalidate()

	e.mu.Lock()
	token := e.token
	e.mu.Unlock()

	if e.client == nil || token == "" {
		return nil
	}

	content, err := dataset.MarshalWorkbook(updated)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	newToken, err := e.client.Put(ctx, content, token, fmt.Sprintf("Update sheet %q", name))
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			log.Printf("WARN: Remote push for sheet '%s' conflicted; local save kept, token unchanged", name)
		}
		return err
	}

	e.mu.Lock()
	e.token = newToken
	e.mu.Unlock()

	return nil
}

// SaveIfChanged runs UpdateSheet only when the incoming table differs
// structurally from the current sheet. This is the auto-save trigger: every
// detected difference saves, an identical table is a no-op.
func (e *Editor) SaveIfChanged(ctx context.Context, name string, table *dataset.Table) (bool, error) {
	ds, err := e.cache.Load()
	if err != nil {
		return false, err
	}
	if current, found := ds.Sheet(name); found && dataset.TablesEqual(current, table) {
		return false, nil
	}
	if err := e.UpdateSheet(ctx, name, table); err != nil {
		return false, err
	}
	return true, nil
}

// AddRow appends one row to the named sheet (absent fields stay missing) and
// saves through the UpdateSheet contract.
func (e *Editor) AddRow(ctx context.Context, name string, fields map[string]any) error {
	ds, err := e.cache.Load()
	if err != nil {
		return err
	}
	current, found := ds.Sheet(name)
	if !found {
		return fmt.Errorf("%w: sheet '%s'", errs.ErrNotFound, name)
	}

	table := current.Clone()
	row := make(dataset.Row, len(table.Columns))
	for _, col := range table.Columns {
		if v, ok := fields[col]; ok {
			row[col] = v
		} else {
			row[col] = nil
		}
	}
	table.Rows = append(table.Rows, row)

	return e.UpdateSheet(ctx, name, table)
}
