package pagestore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/pdsdk/pagedesigner/internal/language"
	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// Page is one stored component tree.
type Page struct {
	ID         string
	RootID     string
	Locale     string
	Components map[string]protocol.Component
}

// PageSummary is a row of ListPages.
type PageSummary struct {
	ID         string
	RootID     string
	Locale     string
	Components int
	UpdatedAt  string
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PutPage stores page, replacing any earlier tree with the same id.
// A locale is stored in its canonical form.
func (s *Store) PutPage(ctx context.Context, page Page) error {
	if err := validateTree(page); err != nil {
		return err
	}
	if page.Locale != "" {
		loc, err := language.ParseLocale(page.Locale)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPage, err)
		}
		page.Locale = loc.Tag
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pages (id, root_component_id, locale)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				root_component_id = excluded.root_component_id,
				locale = excluded.locale,
				updated_at = CURRENT_TIMESTAMP
		`, page.ID, page.RootID, page.Locale); err != nil {
			return fmt.Errorf("pagestore: upsert page %s: %w", page.ID, err)
		}
		return writeComponents(ctx, tx, page)
	})
}

// Page loads the tree of page id.
func (s *Store) Page(ctx context.Context, id string) (Page, error) {
	return loadPage(ctx, s.db, id)
}

// ListPages returns every stored page ordered by id.
func (s *Store) ListPages(ctx context.Context) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.root_component_id, p.locale, p.updated_at,
			(SELECT COUNT(*) FROM components c WHERE c.page_id = p.id)
		FROM pages p
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("pagestore: list pages: %w", err)
	}
	return scanList(rows, "pages", func(row rowScanner) (PageSummary, error) {
		var p PageSummary
		err := row.Scan(&p.ID, &p.RootID, &p.Locale, &p.UpdatedAt, &p.Components)
		return p, err
	})
}

// DeletePage removes page id and its components.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("pagestore: delete page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFoundError{Entity: "page", Key: id}
	}
	return nil
}

// RegionChildren returns the ordered component ids of one region.
func (s *Store) RegionChildren(ctx context.Context, pageID, componentID, regionID string) ([]string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM regions WHERE page_id = ? AND component_id = ? AND region_id = ?
	`, pageID, componentID, regionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("pagestore: region %s/%s: %w", componentID, regionID, err)
	}
	if exists == 0 {
		return nil, NotFoundError{Entity: "region", Key: componentID + "/" + regionID}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT child_id FROM region_children
		WHERE page_id = ? AND component_id = ? AND region_id = ?
		ORDER BY position
	`, pageID, componentID, regionID)
	if err != nil {
		return nil, fmt.Errorf("pagestore: region children %s/%s: %w", componentID, regionID, err)
	}
	ids, err := scanList(rows, "region children", func(row rowScanner) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// validateTree checks that every component is reachable from the root
// through exactly one region.
func validateTree(page Page) error {
	if page.ID == "" {
		return fmt.Errorf("%w: page id is required", ErrInvalidPage)
	}
	if _, ok := page.Components[page.RootID]; !ok {
		return fmt.Errorf("%w: root component %q missing", ErrInvalidPage, page.RootID)
	}

	parents := make(map[string]string, len(page.Components))
	for id, comp := range page.Components {
		if comp.ID != id {
			return fmt.Errorf("%w: component keyed %q has id %q", ErrInvalidPage, id, comp.ID)
		}
		for _, region := range comp.Regions {
			for _, child := range region.ComponentIDs {
				if _, ok := page.Components[child]; !ok {
					return fmt.Errorf("%w: region %s/%s names unknown component %q", ErrInvalidPage, id, region.ID, child)
				}
				if prev, dup := parents[child]; dup {
					return fmt.Errorf("%w: component %q placed in both %s and %s", ErrInvalidPage, child, prev, id)
				}
				if child == page.RootID {
					return fmt.Errorf("%w: root component %q placed in a region", ErrInvalidPage, child)
				}
				parents[child] = id
			}
		}
	}

	for id := range page.Components {
		if id != page.RootID {
			if _, ok := parents[id]; !ok {
				return fmt.Errorf("%w: component %q is not placed in any region", ErrInvalidPage, id)
			}
		}
	}
	// Every component has one parent and the root has none; a cycle
	// would leave its members unreachable from the root.
	seen := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, region := range page.Components[id].Regions {
			for _, child := range region.ComponentIDs {
				walk(child)
			}
		}
	}
	walk(page.RootID)
	if len(seen) != len(page.Components) {
		return fmt.Errorf("%w: components unreachable from root %q", ErrInvalidPage, page.RootID)
	}
	return nil
}

func writeComponents(ctx context.Context, q queryer, page Page) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM components WHERE page_id = ?`, page.ID); err != nil {
		return fmt.Errorf("pagestore: clear components of %s: %w", page.ID, err)
	}

	ids := slices.Sorted(maps.Keys(page.Components))
	for _, id := range ids {
		comp := page.Components[id]
		data, err := encodeJSON(comp.Data, len(comp.Data) == 0)
		if err != nil {
			return fmt.Errorf("pagestore: encode data of %s: %w", id, err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO components (page_id, id, type_id, data) VALUES (?, ?, ?, ?)
		`, page.ID, id, comp.TypeID, data); err != nil {
			return fmt.Errorf("pagestore: insert component %s: %w", id, err)
		}
	}

	for _, id := range ids {
		for pos, region := range page.Components[id].Regions {
			inclusions, err := encodeJSON(region.ComponentTypeInclusions, len(region.ComponentTypeInclusions) == 0)
			if err != nil {
				return fmt.Errorf("pagestore: encode inclusions of %s/%s: %w", id, region.ID, err)
			}
			exclusions, err := encodeJSON(region.ComponentTypeExclusions, len(region.ComponentTypeExclusions) == 0)
			if err != nil {
				return fmt.Errorf("pagestore: encode exclusions of %s/%s: %w", id, region.ID, err)
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO regions (page_id, component_id, region_id, position, inclusions, exclusions)
				VALUES (?, ?, ?, ?, ?, ?)
			`, page.ID, id, region.ID, pos, inclusions, exclusions); err != nil {
				return fmt.Errorf("pagestore: insert region %s/%s: %w", id, region.ID, err)
			}
			for childPos, child := range region.ComponentIDs {
				if _, err := q.ExecContext(ctx, `
					INSERT INTO region_children (page_id, component_id, region_id, child_id, position)
					VALUES (?, ?, ?, ?, ?)
				`, page.ID, id, region.ID, child, childPos); err != nil {
					return fmt.Errorf("pagestore: place %s in %s/%s: %w", child, id, region.ID, err)
				}
			}
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE pages SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, page.ID); err != nil {
		return fmt.Errorf("pagestore: touch page %s: %w", page.ID, err)
	}
	return nil
}

func loadPage(ctx context.Context, q queryer, id string) (Page, error) {
	page := Page{ID: id}
	err := q.QueryRowContext(ctx, `
		SELECT root_component_id, locale FROM pages WHERE id = ?
	`, id).Scan(&page.RootID, &page.Locale)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, NotFoundError{Entity: "page", Key: id}
	}
	if err != nil {
		return Page{}, fmt.Errorf("pagestore: load page %s: %w", id, err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, type_id, data FROM components WHERE page_id = ?
	`, id)
	if err != nil {
		return Page{}, fmt.Errorf("pagestore: load components of %s: %w", id, err)
	}
	components, err := scanList(rows, "components", func(row rowScanner) (protocol.Component, error) {
		var (
			comp protocol.Component
			data sql.NullString
		)
		if err := row.Scan(&comp.ID, &comp.TypeID, &data); err != nil {
			return comp, err
		}
		decoded, err := decodeJSON[map[string]any](data)
		comp.Data = decoded
		return comp, err
	})
	if err != nil {
		return Page{}, err
	}
	page.Components = make(map[string]protocol.Component, len(components))
	for _, comp := range components {
		page.Components[comp.ID] = comp
	}

	rows, err = q.QueryContext(ctx, `
		SELECT component_id, region_id, inclusions, exclusions
		FROM regions WHERE page_id = ?
		ORDER BY component_id, position
	`, id)
	if err != nil {
		return Page{}, fmt.Errorf("pagestore: load regions of %s: %w", id, err)
	}
	type regionRow struct {
		owner  string
		region protocol.Region
	}
	regions, err := scanList(rows, "regions", func(row rowScanner) (regionRow, error) {
		var (
			r                      regionRow
			inclusions, exclusions sql.NullString
		)
		if err := row.Scan(&r.owner, &r.region.ID, &inclusions, &exclusions); err != nil {
			return r, err
		}
		var err error
		if r.region.ComponentTypeInclusions, err = decodeJSON[[]string](inclusions); err != nil {
			return r, err
		}
		r.region.ComponentTypeExclusions, err = decodeJSON[[]string](exclusions)
		r.region.ComponentIDs = []string{}
		return r, err
	})
	if err != nil {
		return Page{}, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT component_id, region_id, child_id
		FROM region_children WHERE page_id = ?
		ORDER BY component_id, region_id, position
	`, id)
	if err != nil {
		return Page{}, fmt.Errorf("pagestore: load region children of %s: %w", id, err)
	}
	type childRow struct{ owner, region, child string }
	children, err := scanList(rows, "region children", func(row rowScanner) (childRow, error) {
		var c childRow
		err := row.Scan(&c.owner, &c.region, &c.child)
		return c, err
	})
	if err != nil {
		return Page{}, err
	}
	byRegion := make(map[string][]string)
	for _, c := range children {
		key := c.owner + "\x00" + c.region
		byRegion[key] = append(byRegion[key], c.child)
	}

	for _, r := range regions {
		comp := page.Components[r.owner]
		if ids := byRegion[r.owner+"\x00"+r.region.ID]; ids != nil {
			r.region.ComponentIDs = ids
		}
		comp.Regions = append(comp.Regions, r.region)
		page.Components[r.owner] = comp
	}
	return page, nil
}

// ParsePage decodes a page tree from JSON of the form
// {"id": ..., "rootId": ..., "locale": ..., "components": {...}}.
func ParsePage(data []byte) (Page, error) {
	var doc struct {
		ID         string                        `json:"id"`
		RootID     string                        `json:"rootId"`
		Locale     string                        `json:"locale"`
		Components map[string]protocol.Component `json:"components"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Page{}, fmt.Errorf("pagestore: parse page: %w", err)
	}
	return Page{ID: doc.ID, RootID: doc.RootID, Locale: doc.Locale, Components: doc.Components}, nil
}
