package ledger

import (
	"context"
	"strings"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/events"
	"github.com/mmynk/tripledger/internal/models"
)

// CreateGroup creates a group with actor as its owner.
func (e *Engine) CreateGroup(ctx context.Context, actor, name, tripID, ownerName string) (*models.Group, error) {
	const op = "ledger.CreateGroup"
	if actor == "" {
		return nil, apperr.Authorization(op, "an authenticated member is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation(op, "group name is required")
	}
	if strings.TrimSpace(ownerName) == "" {
		ownerName = actor
	}

	group := &models.Group{Name: name, TripID: tripID, CreatedAt: e.now().Unix()}
	if err := e.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	owner := &models.Member{
		ID:          actor,
		GroupID:     group.ID,
		DisplayName: ownerName,
		Role:        models.RoleOwner,
		CreatedAt:   group.CreatedAt,
	}
	if err := e.store.AddMember(ctx, owner); err != nil {
		return nil, err
	}

	e.logger.Info("Group created", "group_id", group.ID, "owner", actor)
	e.changed(ctx, group.ID, events.KindGroupCreated)
	return group, nil
}

// GetGroup returns the group's metadata.
func (e *Engine) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return e.store.GetGroup(ctx, groupID)
}

// requireManager checks that actor is an owner or admin of the group.
func (e *Engine) requireManager(ctx context.Context, op, groupID, actor string) ([]models.Member, error) {
	if _, err := e.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.ID == actor && !m.Virtual && (m.Role == models.RoleOwner || m.Role == models.RoleAdmin) {
			return members, nil
		}
	}
	return nil, apperr.Authorization(op, "only group owners and admins can manage members")
}

// AddMember adds a real or virtual member. Only owners and admins may add members.
func (e *Engine) AddMember(ctx context.Context, actor string, member models.Member) (*models.Member, error) {
	const op = "ledger.AddMember"
	if _, err := e.requireManager(ctx, op, member.GroupID, actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(member.DisplayName) == "" {
		return nil, apperr.Validation(op, "display name is required")
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	if !member.Role.Valid() || member.Role == models.RoleOwner {
		return nil, apperr.Validation(op, "role must be admin or member, got %q", member.Role)
	}
	member.CreatedAt = e.now().Unix()

	if err := e.store.AddMember(ctx, &member); err != nil {
		return nil, err
	}

	e.logger.Info("Member added", "group_id", member.GroupID, "member_id", member.ID, "virtual", member.Virtual)
	e.changed(ctx, member.GroupID, events.KindMemberAdded)
	return &member, nil
}

// RemoveMember removes a member that no expense, split or settlement refers to.
// Owners and admins may remove others; any member may remove themselves.
func (e *Engine) RemoveMember(ctx context.Context, actor, groupID, memberID string) error {
	const op = "ledger.RemoveMember"

	if actor != memberID {
		if _, err := e.requireManager(ctx, op, groupID, actor); err != nil {
			return err
		}
	}
	members, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return err
	}
	var target *models.Member
	for i := range members {
		if members[i].ID == memberID {
			target = &members[i]
		}
	}
	if target == nil {
		return apperr.NotFound(op, "member not found: %s", memberID)
	}
	if target.Role == models.RoleOwner {
		return apperr.Conflict(op, "the group owner cannot be removed")
	}

	referenced, err := e.store.MemberReferenced(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.Conflict(op, "member %s is referenced by expenses or settlements", memberID)
	}

	if err := e.store.RemoveMember(ctx, groupID, memberID); err != nil {
		return err
	}

	e.logger.Info("Member removed", "group_id", groupID, "member_id", memberID)
	e.changed(ctx, groupID, events.KindMemberRemoved)
	return nil
}
