// Package reconcile computes and applies the one-time diff between a local
// snapshot and the remote mirror.
package reconcile

import (
	"sort"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/models"
)

// Tolerance is the slack allowed between local and remote modification
// times before a file counts as changed
const Tolerance = time.Second

// NeedsUpdate reports whether a file present on both sides must be uploaded
// again: the local whole-second mtime is more than Tolerance newer than the
// remote one, or the sizes differ.
func NeedsUpdate(local, remote models.Entry) bool {
	tolerance := int64(Tolerance / time.Second)
	return local.ModTime.Unix() > remote.ModTime.Unix()+tolerance || local.Size != remote.Size
}

// Plan diffs two snapshots into an ordered list of actions.
//
// Creations come first in ascending path order, so parents precede
// children. Updates follow. Removals come last in descending path order, so
// children precede parents, and only when deletionAllowed; otherwise they
// are counted in ExtraRemote.
func Plan(local, remote models.Snapshot, deletionAllowed bool) *models.Plan {
	plan := &models.Plan{}

	var creates, updates, removes []string
	for p, l := range local {
		r, ok := remote[p]
		switch {
		case !ok:
			creates = append(creates, p)
		case l.IsDir():
			// directories present on both sides need nothing
		case NeedsUpdate(l, r):
			updates = append(updates, p)
		default:
			plan.Unchanged++
		}
	}
	for p := range remote {
		if _, ok := local[p]; !ok {
			removes = append(removes, p)
		}
	}

	sort.Strings(creates)
	sort.Strings(updates)
	sort.Sort(sort.Reverse(sort.StringSlice(removes)))

	for _, p := range creates {
		e := local[p]
		if e.IsDir() {
			plan.Actions = append(plan.Actions, models.Action{
				Kind:         models.ActionMkdir,
				RelativePath: p,
				Reason:       "missing on remote",
			})
			continue
		}
		plan.Actions = append(plan.Actions, models.Action{
			Kind:         models.ActionUpload,
			RelativePath: p,
			Size:         e.Size,
			Reason:       "missing on remote",
		})
	}

	for _, p := range updates {
		plan.Actions = append(plan.Actions, models.Action{
			Kind:         models.ActionUpdate,
			RelativePath: p,
			Size:         local[p].Size,
			Reason:       updateReason(local[p], remote[p]),
		})
	}

	if !deletionAllowed {
		plan.ExtraRemote = len(removes)
		return plan
	}

	for _, p := range removes {
		kind := models.ActionRemoveFile
		if remote[p].IsDir() {
			kind = models.ActionRemoveDir
		}
		plan.Actions = append(plan.Actions, models.Action{
			Kind:         kind,
			RelativePath: p,
			Reason:       "missing locally",
		})
	}

	return plan
}

func updateReason(local, remote models.Entry) string {
	if local.Size != remote.Size {
		return "size differs"
	}
	return "local copy is newer"
}
