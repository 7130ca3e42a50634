package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/eventtype"
	"github.com/Strob0t/CodeForge/internal/service"
)

// image is one inline image attached to a user_suggestion frame. Only its
// count and size are inspected here (§4.13/§6 validation); the bytes
// themselves are not forwarded — the controller receives only the
// suggestion text, since neither AppState nor the LLM port defines an
// image-attachment slot.
type image struct {
	Data []byte `json:"data"`
}

type userSuggestionPayload struct {
	Text   string  `json:"text"`
	Images []image `json:"images,omitempty"`
}

// NewControlHandler returns the Control-Message Handler (C14): a
// ws.Handler that looks sessionID up in registry and switches on msg.Type
// over the closed inbound set (§4.13, §6). Unknown types and any error
// encountered while handling a known type become a per-channel `error`
// frame; nothing is ever propagated back up into the Hub's read loop
// (the Hub itself also recovers handler panics as a second line of
// defense, see hub.go).
func NewControlHandler(registry *service.SessionRegistry) Handler {
	return func(ctx context.Context, sessionID string, msg Message, ch *Channel) {
		sess := registry.Get(sessionID)
		if sess == nil {
			ch.SendError(ctx, fmt.Sprintf("unknown session %q", sessionID))
			return
		}

		var err error
		switch msg.Type {
		case InGenerateAll:
			err = handleGenerateAll(ctx, sess)
		case InPreview:
			err = handlePreview(ctx, sess, ch)
		case InDeploy:
			err = handleDeploy(ctx, sess, ch)
		case InCaptureScreenshot:
			err = handleCaptureScreenshot(ctx, sess, ch)
		case InStopGeneration:
			err = handleStopGeneration(ctx, sess, ch)
		case InResumeGeneration:
			err = handleResumeGeneration(ctx, sess)
		case InUserSuggestion:
			err = handleUserSuggestion(ctx, sess, msg)
		case InClearConversation:
			err = handleClearConversation(ctx, sess, ch)
		case InGetConversationState:
			err = handleGetConversationState(ctx, sess, ch)
		case InGetModelConfigs:
			err = handleGetModelConfigs(ctx, sess, ch)
		case InGithubExport:
			err = fmt.Errorf("github_export is no longer supported; use the export API directly")
		default:
			err = fmt.Errorf("unknown frame type %q", msg.Type)
		}

		if err != nil {
			ch.SendError(ctx, err.Error())
		}
	}
}

// handleGenerateAll sets shouldBeGenerating and kicks off the active
// controller's entry point if it is not already running; the flag itself
// is owned and cleared by the controller on completion (§4.13). Runs
// against a detached context rather than the connection-scoped ctx this
// frame arrived on: a WS disconnect cancels that ctx (hub.go's remove()
// on the read loop exiting), and a closing subscriber must never mutate
// session state (§3 Ownership) — generation has to keep running for any
// other connection watching the same session, or for a client that
// reconnects.
func handleGenerateAll(_ context.Context, sess *service.Session) error {
	go func() {
		if err := sess.Dispatch.GenerateAll(context.Background()); err != nil {
			sess.Log.Error("control handler: generate_all failed", "session_id", sess.ID, "error", err)
		}
	}()
	return nil
}

func handlePreview(ctx context.Context, sess *service.Session, ch *Channel) error {
	url, err := sess.Dispatch.Preview(ctx)
	if err != nil {
		return err
	}
	ch.Send(ctx, eventtype.PreviewForceRefresh, map[string]string{"previewUrl": url})
	return nil
}

func handleDeploy(ctx context.Context, sess *service.Session, ch *Channel) error {
	url, err := sess.Dispatch.Deploy(ctx)
	if err != nil {
		ch.Send(ctx, eventtype.CloudflareDeploymentError, map[string]string{"message": err.Error()})
		return nil
	}
	ch.Send(ctx, eventtype.CloudflareDeploymentCompleted, map[string]string{"url": url})
	return nil
}

func handleCaptureScreenshot(ctx context.Context, sess *service.Session, ch *Channel) error {
	shot, err := sess.Dispatch.CaptureScreenshot(ctx)
	if err != nil {
		return err
	}
	ch.Send(ctx, "screenshot_captured", map[string]string{"screenshot": shot})
	return nil
}

func handleStopGeneration(ctx context.Context, sess *service.Session, ch *Channel) error {
	if err := sess.Dispatch.StopGeneration(ctx); err != nil {
		return err
	}
	ch.Send(ctx, eventtype.GenerationStopped, map[string]any{"sessionId": sess.ID})
	return nil
}

// handleResumeGeneration kicks off ResumeGeneration the same way
// handleGenerateAll kicks off GenerateAll: in a goroutine, on a detached
// context. ResumeGeneration chains into the same blocking state-machine
// run GenerateAll does, and the Hub's read loop (hub.go) only calls back
// into wsConn.Read after this handler returns — running it synchronously
// would block the connection for the run's entire duration, leaving the
// client unable to send stop_generation on that same connection until
// generation finished on its own.
func handleResumeGeneration(_ context.Context, sess *service.Session) error {
	go func() {
		if err := sess.Dispatch.ResumeGeneration(context.Background()); err != nil {
			sess.Log.Error("control handler: resume_generation failed", "session_id", sess.ID, "error", err)
		}
	}()
	return nil
}

// handleUserSuggestion validates image count and per-image size against
// §6's MAX_IMAGES_PER_MESSAGE/MAX_IMAGE_SIZE_BYTES before handing the
// suggestion to the controller; a violation leaves state unchanged and
// returns an error for the caller to surface, per §8's documented edge
// case.
func handleUserSuggestion(ctx context.Context, sess *service.Session, msg Message) error {
	var p userSuggestionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("user_suggestion: invalid payload: %w", err)
	}
	if len(p.Images) > agentsession.MaxImagesPerMessage {
		return fmt.Errorf("user_suggestion: %d images exceeds max of %d", len(p.Images), agentsession.MaxImagesPerMessage)
	}
	for i, img := range p.Images {
		if len(img.Data) > agentsession.MaxImageSizeBytes {
			return fmt.Errorf("user_suggestion: image %d exceeds max size of %d bytes", i, agentsession.MaxImageSizeBytes)
		}
	}
	return sess.Dispatch.UserSuggestion(ctx, p.Text)
}

func handleClearConversation(ctx context.Context, sess *service.Session, ch *Channel) error {
	sess.Conv.ClearCompact(ctx)
	ch.Send(ctx, eventtype.ConversationCleared, map[string]any{"sessionId": sess.ID})
	return nil
}

func handleGetConversationState(ctx context.Context, sess *service.Session, ch *Channel) error {
	st := sess.Conv.GetState()
	ch.Send(ctx, eventtype.ConversationState, conversationStatePayload{
		Running: st.Running.Messages(),
		Full:    st.Full.Messages(),
	})
	return nil
}

type conversationStatePayload struct {
	Running []conversation.Message `json:"running"`
	Full    []conversation.Message `json:"full"`
}

func handleGetModelConfigs(ctx context.Context, sess *service.Session, ch *Channel) error {
	cfg, err := sess.Dispatch.GetModelConfigs(ctx)
	if err != nil {
		return err
	}
	ch.Send(ctx, "model_configs_info", cfg)
	return nil
}
