package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/config"
	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
)

// ErrEmptyReply is wrapped in a RemoteError when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// RemoteError marks a failure on the model provider's side: rate limits,
// revoked credentials, network faults and timeouts.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote model %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err came from the model provider.
func IsRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}

// Service encapsulates the calls to the hosted chat model.
type Service struct {
	chatModel    model.ChatModel
	chain        compose.Runnable[[]*schema.Message, *schema.Message]
	timeout      time.Duration
	historyLimit int
	logger       logrus.FieldLogger
}

// NewService creates the ark chat model described by cfg and wraps it.
func NewService(ctx context.Context, cfg config.AIConfig, logger logrus.FieldLogger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger)
}

// NewServiceWithModel wraps an existing chat model, which lets tests supply a fake.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig, logger logrus.FieldLogger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		chain:        runnable,
		timeout:      cfg.Timeout,
		historyLimit: cfg.HistoryLimit,
		logger:       logger.WithField("component", "ai"),
	}, nil
}

// Send asks the model for the next turn. The instruction travels in the
// system slot; history holds the earlier turns and text is the new user turn.
func (s *Service) Send(ctx context.Context, history []chat.Message, instruction, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("user message is empty")
	}

	input := make([]*schema.Message, 0, len(history)+2)
	input = append(input, schema.SystemMessage(instruction))
	input = append(input, s.buildHistoryMessages(history)...)
	input = append(input, schema.UserMessage(text))

	return s.invoke(ctx, "chat", input)
}

// Classify runs a single-shot prompt used for short classification answers.
func (s *Service) Classify(ctx context.Context, instruction, text string) (string, error) {
	input := []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(text),
	}
	return s.invoke(ctx, "classify", input)
}

func (s *Service) invoke(ctx context.Context, op string, input []*schema.Message) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", &RemoteError{Op: op, Err: err}
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", &RemoteError{Op: op, Err: ErrEmptyReply}
	}

	s.logger.WithFields(logrus.Fields{
		"op":       op,
		"messages": len(input),
		"length":   len(response.Content),
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Debug("model call completed")
	return response.Content, nil
}

// buildHistoryMessages maps stored turns onto the provider schema. Stored
// system turns are dropped: the instruction has its own slot.
func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if s.historyLimit > 0 && len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text()))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(msg.Text(), nil))
		}
	}

	return history
}
