package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/mod/semver"

	"storefront/internal/model"
	"storefront/internal/schema"
)

const (
	// StateKey is the key the cart state is persisted under.
	StateKey = "cart-storage"

	// StateVersion is the format version written with every record.
	// Minor bumps must stay readable by older code; a major bump discards
	// every record written before it.
	StateVersion = "v1.0.0"
)

type stateRecord struct {
	Version string          `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	State   model.CartState `json:"state"`
}

// StateRepository saves and rehydrates the cart state.
type StateRepository struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
}

// NewStateRepository creates a repository on top of kv.
func NewStateRepository(kv KV, logger *slog.Logger) *StateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateRepository{kv: kv, logger: logger, now: time.Now}
}

// Save writes a snapshot of state.
func (r *StateRepository) Save(ctx context.Context, state model.CartState) error {
	data, err := json.Marshal(stateRecord{
		Version: StateVersion,
		SavedAt: r.now().UTC(),
		State:   state.Clone(),
	})
	if err != nil {
		return fmt.Errorf("encoding cart state: %w", err)
	}
	return r.kv.Set(ctx, StateKey, data, 0)
}

// Load returns the persisted state. found is false when nothing usable is
// stored: no record, an incompatible version, or a record whose items fail
// validation. Unusable records are deleted and logged, not returned as errors.
func (r *StateRepository) Load(ctx context.Context) (state model.CartState, found bool, err error) {
	data, err := r.kv.Get(ctx, StateKey)
	if errors.Is(err, ErrNotFound) {
		return model.CartState{}, false, nil
	}
	if err != nil {
		return model.CartState{}, false, err
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return r.reset(ctx, "unreadable record", "error", err)
	}
	if !Compatible(rec.Version) {
		return r.reset(ctx, "incompatible version", "version", rec.Version, "want", StateVersion)
	}
	if err := schema.ValidateItems(rec.State.Items); err != nil {
		return r.reset(ctx, "invalid items", "error", err)
	}

	state = rec.State.Clone()
	// Derived flag; never trust a stored value that disagrees with the diff.
	state.CartChanged = len(state.Diff) > 0
	return state, true, nil
}

// Clear removes the persisted state.
func (r *StateRepository) Clear(ctx context.Context) error {
	return r.kv.Delete(ctx, StateKey)
}

func (r *StateRepository) reset(ctx context.Context, reason string, args ...any) (model.CartState, bool, error) {
	r.logger.Warn("discarding persisted cart state", append([]any{"reason", reason}, args...)...)
	if err := r.kv.Delete(ctx, StateKey); err != nil {
		r.logger.Warn("failed to delete persisted cart state", "error", err)
	}
	return model.CartState{}, false, nil
}

// Compatible reports whether a record written at version can be loaded.
func Compatible(version string) bool {
	return semver.IsValid(version) && semver.Major(version) == semver.Major(StateVersion)
}
