package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-chat/internal/chatplatform"
	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
	"github.com/capitalize-ai/persona-chat/pkg/metrics"
)

// ProvisioningService handles user and channel setup on the chat platform.
type ProvisioningService struct {
	platform chatplatform.Platform
	logger   *logger.Logger
}

// NewProvisioningService creates a new provisioning service.
func NewProvisioningService(platform chatplatform.Platform, log *logger.Logger) *ProvisioningService {
	if log == nil {
		log = logger.Global()
	}
	return &ProvisioningService{
		platform: platform,
		logger:   log,
	}
}

// CreateUser upserts the user and issues a token. Repeating the call for the
// same user id is safe and yields a fresh valid token.
func (s *ProvisioningService) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.CreateUserResponse, error) {
	if err := chatplatform.ValidateID("user_id", req.UserID); err != nil {
		return nil, newError(ErrorValidation, err.Error(), 0, nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, newError(ErrorValidation, "name is required", 0, nil)
	}

	err := s.platform.UpsertUsers(ctx, chatplatform.User{ID: req.UserID, Name: req.Name, Image: req.Image})
	if err != nil {
		return nil, classify(ErrorDelivery, "failed to upsert user", 0, err)
	}

	token, err := s.platform.CreateToken(req.UserID)
	if err != nil {
		return nil, classify(ErrorDelivery, "failed to create token", 0, err)
	}

	metrics.UsersProvisionedTotal.Inc()
	s.logger.Info("user provisioned", zap.String("user_id", req.UserID))

	return &model.CreateUserResponse{
		UserID: req.UserID,
		Token:  token,
		Name:   req.Name,
	}, nil
}

// CreateChat upserts both users and creates their two-party channel. The
// channel id does not depend on argument order.
func (s *ProvisioningService) CreateChat(ctx context.Context, req *model.CreateChatRequest) (*model.CreateChatResponse, error) {
	for _, f := range []struct{ kind, id string }{
		{"user1", req.User1},
		{"user2", req.User2},
		{"creator_id", req.CreatorID},
	} {
		if err := chatplatform.ValidateID(f.kind, f.id); err != nil {
			return nil, newError(ErrorValidation, err.Error(), 0, nil)
		}
	}

	first, second, channelID := chatplatform.PairChannelName(req.User1, req.User2)
	if err := chatplatform.ValidateID("channel_id", channelID); err != nil {
		return nil, newError(ErrorValidation, err.Error(), 0, nil)
	}

	err := s.platform.UpsertUsers(ctx,
		chatplatform.User{ID: first, Name: "User " + first},
		chatplatform.User{ID: second, Name: "User " + second},
	)
	if err != nil {
		return nil, classify(ErrorDelivery, "failed to upsert users", 0, err)
	}

	if _, err := s.platform.EnsureChannel(ctx, chatplatform.ChannelTypeMessaging, channelID, req.CreatorID, []string{first, second}); err != nil {
		return nil, classify(ErrorDelivery, "failed to create channel", 0, err)
	}

	metrics.ChannelsCreatedTotal.Inc()
	s.logger.Info("channel created",
		zap.String("channel_id", channelID),
		zap.String("creator_id", req.CreatorID),
	)

	return &model.CreateChatResponse{
		ChannelID: channelID,
		Details:   fmt.Sprintf("Channel between %s and %s", first, second),
	}, nil
}
