package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
)

// GroupService implements group administration.
type GroupService struct {
	engine *ledger.Engine
}

// NewGroupService creates a GroupService backed by engine.
func NewGroupService(engine *ledger.Engine) *GroupService {
	return &GroupService{engine: engine}
}

// CreateGroup creates a group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	slog.Info("CreateGroup request received", "name", req.Msg.Name, "trip_id", req.Msg.TripID)

	group, err := s.engine.CreateGroup(ctx, actor, req.Msg.Name, req.Msg.TripID, req.Msg.DisplayName)
	if err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return s.groupResponse(ctx, group.ID)
}

// GetGroup retrieves a group and its members. Only members may read it.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)
	return s.groupResponse(ctx, req.Msg.GroupID)
}

func (s *GroupService) groupResponse(ctx context.Context, groupID string) (*connect.Response[GroupResponse], error) {
	view, err := readView(ctx, s.engine, groupID)
	if view == nil {
		slog.Error("GetGroup failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	members := make([]Member, len(view.State.Members))
	for i, m := range view.State.Members {
		members[i] = toMember(m)
	}
	return connect.NewResponse(&GroupResponse{
		Group:   toGroup(view.State.Group),
		Members: members,
	}), nil
}

// AddMember adds a real or virtual member. Requires an owner or admin.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[AddMemberRequest]) (*connect.Response[AddMemberResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	slog.Info("AddMember request received",
		"group_id", req.Msg.GroupID,
		"display_name", req.Msg.DisplayName,
		"virtual", req.Msg.Virtual,
	)

	member, err := s.engine.AddMember(ctx, actor, models.Member{
		ID:          req.Msg.MemberID,
		GroupID:     req.Msg.GroupID,
		DisplayName: req.Msg.DisplayName,
		Role:        models.Role(req.Msg.Role),
		AvatarRef:   req.Msg.AvatarRef,
		Virtual:     req.Msg.Virtual,
	})
	if err != nil {
		slog.Error("AddMember failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Member added", "group_id", member.GroupID, "member_id", member.ID)
	return connect.NewResponse(&AddMemberResponse{Member: toMember(*member)}), nil
}

// RemoveMember removes a member that no ledger entry references.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[RemoveMemberResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	slog.Info("RemoveMember request received", "group_id", req.Msg.GroupID, "member_id", req.Msg.MemberID)

	if err := s.engine.RemoveMember(ctx, actor, req.Msg.GroupID, req.Msg.MemberID); err != nil {
		slog.Error("RemoveMember failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Member removed", "group_id", req.Msg.GroupID, "member_id", req.Msg.MemberID)
	return connect.NewResponse(&RemoveMemberResponse{}), nil
}
