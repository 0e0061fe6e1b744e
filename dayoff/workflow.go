/*
workflow.go - Approval state machine

STATES:
  pending ──▶ team_leader_approved ──▶ approved
     │                 │
     └──────▶ rejected ◀┘

  approved and rejected are terminal. provisional is internal to request
  creation and accepts no transitions.

DISPATCH:
  Every legal step is one row of Transitions. A step is looked up by
  (actor role, action, current status) and then its Relation is checked
  against the request:

    RelationTeamLeader  actor.ID == request.TeamLeaderID
    RelationManager     actor.ID == request.ManagerID
    RelationOverride    none (admin)

  No row for the role and action, or a failed relation: forbidden.
  Rows exist but none start at the current status: invalid transition.

SEE ALSO:
  - service.go: Approve/Reject run the side effects inside WithTx
*/
package dayoff

import (
	"time"

	"github.com/warp/compday/generic"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Relation is what must hold between actor and request.
type Relation int

const (
	RelationTeamLeader Relation = iota
	RelationManager
	RelationOverride
)

func (rel Relation) holds(actor generic.Actor, r *Request) bool {
	switch rel {
	case RelationTeamLeader:
		return r.TeamLeaderID != "" && actor.ID == r.TeamLeaderID
	case RelationManager:
		return r.ManagerID != "" && actor.ID == r.ManagerID
	case RelationOverride:
		return true
	}
	return false
}

func (rel Relation) String() string {
	switch rel {
	case RelationTeamLeader:
		return "assigned team leader"
	case RelationManager:
		return "assigned manager"
	case RelationOverride:
		return "admin override"
	}
	return "unknown"
}

// Transition is one row of the state machine.
type Transition struct {
	Role     generic.Role
	Action   Action
	From     Status
	Relation Relation
	To       Status
}

// Transitions is the complete table. Anything not listed is illegal.
var Transitions = []Transition{
	{generic.RoleTeamLeader, ActionApprove, StatusPending, RelationTeamLeader, StatusTeamLeaderApproved},
	{generic.RoleAdmin, ActionApprove, StatusPending, RelationOverride, StatusTeamLeaderApproved},
	{generic.RoleManager, ActionApprove, StatusTeamLeaderApproved, RelationManager, StatusApproved},
	{generic.RoleAdmin, ActionApprove, StatusTeamLeaderApproved, RelationOverride, StatusApproved},

	{generic.RoleTeamLeader, ActionReject, StatusPending, RelationTeamLeader, StatusRejected},
	{generic.RoleManager, ActionReject, StatusPending, RelationManager, StatusRejected},
	{generic.RoleManager, ActionReject, StatusTeamLeaderApproved, RelationManager, StatusRejected},
	{generic.RoleAdmin, ActionReject, StatusPending, RelationOverride, StatusRejected},
	{generic.RoleAdmin, ActionReject, StatusTeamLeaderApproved, RelationOverride, StatusRejected},
}

// Next finds the transition the actor may take on the request.
func Next(actor generic.Actor, action Action, r *Request) (Transition, error) {
	fail := func(forbidden bool, reason string) (Transition, error) {
		return Transition{}, &generic.TransitionError{
			Actor:     actor,
			Action:    string(action),
			From:      string(r.Status),
			Forbidden: forbidden,
			Reason:    reason,
		}
	}

	if err := actor.Validate(); err != nil {
		return fail(true, "no authenticated actor")
	}

	roleHasAction := false
	for _, t := range Transitions {
		if t.Role != actor.Role || t.Action != action {
			continue
		}
		roleHasAction = true
		if t.From != r.Status {
			continue
		}
		if !t.Relation.holds(actor, r) {
			return fail(true, "actor is not the "+t.Relation.String())
		}
		return t, nil
	}

	if !roleHasAction {
		return fail(true, "role may not "+string(action)+" requests")
	}
	return fail(false, "no transition from this status")
}

// Allowed lists the actions the actor could take right now. Used to render
// the approval queue.
func Allowed(actor generic.Actor, r *Request) []Action {
	var actions []Action
	for _, action := range []Action{ActionApprove, ActionReject} {
		if _, err := Next(actor, action, r); err == nil {
			actions = append(actions, action)
		}
	}
	return actions
}

// apply moves the request to t.To and records provenance.
func (t Transition) apply(r *Request, actor generic.Actor, at time.Time) {
	switch {
	case t.To == StatusTeamLeaderApproved:
		r.TeamLeaderApprovedBy = actor.ID
		r.TeamLeaderApprovedAt = &at
	default:
		r.ApprovedBy = actor.ID
		r.ApprovedAt = &at
	}
	r.Status = t.To
	r.UpdatedAt = at
}
