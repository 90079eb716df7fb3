// Package builtin carries the one worked example of a connector backend
// kept in-tree: a Slack notification connector. Real deployments wire
// email/blocklist/threat-intel connectors as external collaborators
// (§1 Non-goals); Slack is kept here because it satisfies the generic
// connector.Implementation contract end to end without any mock.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/soarcore/soarcore/pkg/connector"
)

// SlackConnector posts playbook notifications to a single Slack channel.
// It implements connector.Implementation for action_type "post_message".
type SlackConnector struct {
	api       *goslack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackConnector builds a Slack-backed notification connector. apiURL
// overrides the default Slack API base and is intended for pointing at a
// mock server in tests; pass "" for production use.
func NewSlackConnector(token, channelID, apiURL string, timeout time.Duration) *SlackConnector {
	opts := []goslack.Option{}
	if apiURL != "" {
		opts = append(opts, goslack.OptionAPIURL(apiURL))
	}
	return &SlackConnector{
		api:       goslack.New(token, opts...),
		channelID: channelID,
		timeout:   timeout,
	}
}

// Execute implements connector.Implementation. The only supported
// action_type is "post_message"; inputs carries "text" and optionally
// "thread_ts".
func (s *SlackConnector) Execute(ctx context.Context, actionType string, inputs map[string]any) (map[string]any, *connector.Error) {
	if actionType != "post_message" {
		return nil, connector.NewError(connector.CodeInvalidAction, fmt.Sprintf("slack connector has no action %q", actionType))
	}

	text, _ := inputs["text"].(string)
	if text == "" {
		return nil, connector.NewError(connector.CodeInvalidInput, "text is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false)}
	if threadTS, _ := inputs["thread_ts"].(string); threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, ts, err := s.api.PostMessageContext(callCtx, s.channelID, opts...)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, connector.NewError(connector.CodeTimeout, "slack post_message timed out")
		}
		slog.Error("slack post_message failed", "error", err)
		return nil, connector.NewError(connector.CodeConnectionFailed, err.Error())
	}

	return map[string]any{"message_ts": ts}, nil
}
