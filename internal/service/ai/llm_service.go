package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tbonnaves/chat-relay/internal/config"
)

// Service wraps the upstream chat-completion model.
type Service struct {
	chatModel model.ChatModel
}

// NewService creates the upstream client from configuration.
func NewService(ctx context.Context, cfg config.UpstreamConfig) (*Service, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Service{chatModel: chatModel}, nil
}

// Complete streams a completion for the assembled conversation and returns
// the yielded fragments concatenated in arrival order. The context governs
// the whole exchange: cancelling it aborts the receive loop.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	stream, err := s.chatModel.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("open upstream stream: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("receive upstream chunk: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		reply.WriteString(chunk.Content)
	}

	log.Debug().Int("length", reply.Len()).Msg("upstream reply accumulated")
	return reply.String(), nil
}
