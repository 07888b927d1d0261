package orchestrator

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
)

// load fetches the views of ids, or of every capsule indexed under the snapshot's identity when ids
// is nil. Views that loaded are returned alongside the combined error of those that did not.
func (o *Orchestrator) load(ctx context.Context, dep Deployment, snap Snapshot, ids []capsule.CapsuleID) ([]Capsule, error) {
	if ids == nil {
		var listed capsule.CapsuleIDsReturn
		if err := o.read(ctx, dep, snap, builtin.MethodsCapsule.ListCapsulesFor, &capsule.IdentityParams{Identity: snap.Identity}, &listed); err != nil {
			return nil, err
		}
		seen := make(map[capsule.CapsuleID]bool, len(listed.IDs))
		for _, id := range listed.IDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	var result *multierror.Error
	views := make([]Capsule, 0, len(ids))
	for _, id := range ids {
		view, err := o.fetch(ctx, dep, snap, id)
		if err != nil {
			result = multierror.Append(result, xerrors.Errorf("loading capsule %d: %w", id, err))
			continue
		}
		views = append(views, view)
	}
	return views, result.ErrorOrNil()
}

func (o *Orchestrator) fetch(ctx context.Context, dep Deployment, snap Snapshot, id capsule.CapsuleID) (Capsule, error) {
	params := &capsule.CapsuleIDParams{ID: id}
	var meta capsule.MetadataReturn
	if err := o.read(ctx, dep, snap, builtin.MethodsCapsule.GetMetadata, params, &meta); err != nil {
		return Capsule{}, err
	}
	var handles capsule.HandlesReturn
	if err := o.read(ctx, dep, snap, builtin.MethodsCapsule.GetCiphertextHandles, params, &handles); err != nil {
		return Capsule{}, err
	}
	return Capsule{
		ID:          id,
		ReleaseTime: meta.ReleaseTime,
		Owner:       meta.Owner,
		Heir:        meta.Heir,
		Unlocked:    meta.Unlocked,
		Handles:     handles.Handles,
	}, nil
}
