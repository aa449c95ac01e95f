package playbook

import (
	"time"

	"github.com/google/uuid"
)

// EditOp is the operation an Edit applies to an existing bullet.
type EditOp string

const (
	// OpIncHelpful increments the bullet's helpful counter.
	OpIncHelpful EditOp = "inc_helpful"

	// OpIncHarmful increments the bullet's harmful counter.
	OpIncHarmful EditOp = "inc_harmful"

	// OpPatch rewrites or appends to the bullet's body. The body's
	// embedding is recomputed as part of the same delta.
	OpPatch EditOp = "patch"

	// OpResetCounters zeroes both counters. This is the only way counters
	// ever decrease.
	OpResetCounters EditOp = "reset_counters"
)

// PatchMode controls how OpPatch combines the patch text with the existing body.
type PatchMode string

const (
	PatchAppend  PatchMode = "append"
	PatchReplace PatchMode = "replace"
)

// Addition is a new bullet draft inside a delta. It has no id yet; the merge
// engine either inserts it as a fresh bullet or folds it into an existing
// near-duplicate as a reinforcement.
type Addition struct {
	Kind  Kind     `json:"kind"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

// Edit targets an existing bullet by id.
type Edit struct {
	BulletID  string    `json:"bullet_id"`
	Op        EditOp    `json:"op"`
	PatchText string    `json:"patch_text,omitempty"`
	PatchMode PatchMode `json:"patch_mode,omitempty"`
}

// Trace is an audit record of one task execution that produced this delta.
// Traces are stored alongside the merge in the same transaction; bullets
// created or reinforced by the delta pick up their ids as source traces.
type Trace struct {
	ID                  string    `json:"id"`
	Query               string    `json:"query"`
	SelectedBulletIDs   []string  `json:"selected_bullet_ids,omitempty"`
	UsedBulletIDs       []string  `json:"used_bullet_ids,omitempty"`
	MisleadingBulletIDs []string  `json:"misleading_bullet_ids,omitempty"`
	Success             bool      `json:"success"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewTraceID returns a fresh trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// Delta is an atomic batch of proposed additions and edits. A delta commits
// as a whole: per-item failures are reported and excluded, but a provider or
// store failure mid-delta leaves no partial state behind.
type Delta struct {
	Additions []Addition `json:"additions,omitempty"`
	Edits     []Edit     `json:"edits,omitempty"`
	Traces    []Trace    `json:"traces,omitempty"`
}

// Empty reports whether the delta carries no work.
func (d *Delta) Empty() bool {
	return len(d.Additions) == 0 && len(d.Edits) == 0 && len(d.Traces) == 0
}

// ItemFailure reports one addition or edit that was excluded from the commit.
// Ref is "addition[i]" or the target bullet id for edits.
type ItemFailure struct {
	Ref string `json:"ref"`
	Err string `json:"error"`
}

// TextDivergence flags a reinforcement whose incoming text differed from the
// existing bullet's body. The existing text stays authoritative; the
// divergence is surfaced for external review instead of being merged.
type TextDivergence struct {
	BulletID     string `json:"bullet_id"`
	IncomingText string `json:"incoming_text"`
}

// MergeReport lists what one merge did, for observability by the caller.
type MergeReport struct {
	CreatedIDs      []string         `json:"created_ids,omitempty"`
	ReinforcedIDs   []string         `json:"reinforced_ids,omitempty"`
	EditedIDs       []string         `json:"edited_ids,omitempty"`
	Failures        []ItemFailure    `json:"failures,omitempty"`
	TextDivergences []TextDivergence `json:"text_divergences,omitempty"`
}

// FoldedBullet records one bullet folded into a cluster representative.
type FoldedBullet struct {
	BulletID         string `json:"bullet_id"`
	RepresentativeID string `json:"representative_id"`
}

// RefinementReport lists what a refinement pass pruned.
type RefinementReport struct {
	// TriggeredBy is "proactive" or "lazy".
	TriggeredBy    string         `json:"triggered_by"`
	DeactivatedIDs []string       `json:"deactivated_ids,omitempty"`
	Folded         []FoldedBullet `json:"folded,omitempty"`
}

// SubmitReport is the combined result of one delta submission.
type SubmitReport struct {
	Merge MergeReport `json:"merge"`

	// Refinement is nil when no refinement pass ran (lazy mode below the
	// window threshold).
	Refinement *RefinementReport `json:"refinement,omitempty"`
}

// ScoredBullet is one retrieval result.
type ScoredBullet struct {
	Bullet
	Score float64 `json:"score"`
}
