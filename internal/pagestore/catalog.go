package pagestore

import (
	"context"
	"fmt"

	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// PutComponentType registers or replaces a palette entry.
func (s *Store) PutComponentType(ctx context.Context, ct protocol.ComponentType) error {
	if ct.ID == "" {
		return fmt.Errorf("pagestore: component type id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO component_types (id, name, grp, image) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, grp = excluded.grp, image = excluded.image
	`, ct.ID, ct.Name, ct.Group, ct.Image)
	if err != nil {
		return fmt.Errorf("pagestore: put component type %s: %w", ct.ID, err)
	}
	return nil
}

// ComponentTypes returns the palette keyed by type id.
func (s *Store) ComponentTypes(ctx context.Context) (map[string]protocol.ComponentType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, grp, image FROM component_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pagestore: list component types: %w", err)
	}
	types, err := scanList(rows, "component types", func(row rowScanner) (protocol.ComponentType, error) {
		var ct protocol.ComponentType
		err := row.Scan(&ct.ID, &ct.Name, &ct.Group, &ct.Image)
		return ct, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]protocol.ComponentType, len(types))
	for _, ct := range types {
		out[ct.ID] = ct
	}
	return out, nil
}

// SetLabel stores a UI label shown by the client.
func (s *Store) SetLabel(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labels (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("pagestore: set label %s: %w", key, err)
	}
	return nil
}

// Labels returns every stored label.
func (s *Store) Labels(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM labels ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("pagestore: list labels: %w", err)
	}
	pairs, err := scanList(rows, "labels", func(row rowScanner) ([2]string, error) {
		var kv [2]string
		err := row.Scan(&kv[0], &kv[1])
		return kv, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// Acknowledgement builds the configuration a host answers a client's
// handshake with for page pageID.
func (s *Store) Acknowledgement(ctx context.Context, pageID string) (protocol.ClientAcknowledgedEvent, error) {
	page, err := s.Page(ctx, pageID)
	if err != nil {
		return protocol.ClientAcknowledgedEvent{}, err
	}
	types, err := s.ComponentTypes(ctx)
	if err != nil {
		return protocol.ClientAcknowledgedEvent{}, err
	}
	labels, err := s.Labels(ctx)
	if err != nil {
		return protocol.ClientAcknowledgedEvent{}, err
	}
	return protocol.ClientAcknowledgedEvent{
		Components:     page.Components,
		ComponentTypes: types,
		Labels:         labels,
		Locale:         page.Locale,
	}, nil
}
