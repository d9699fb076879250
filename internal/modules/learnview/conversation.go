package learnview

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
)

func (s *Session) conversationScope() (learning.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return learning.Scope{}, ErrSessionClosed
	}
	if s.req.Topic == "" && s.course == nil {
		return learning.Scope{}, ErrNoCourse
	}
	courseID := ""
	if s.course != nil {
		courseID = s.course.ID
	}
	return s.req.scope(courseID), nil
}

// Conversation returns the tutor log: the local copy when there is one, the
// content API's otherwise. A failing remote yields an empty log.
func (s *Session) Conversation(ctx context.Context) ([]learning.Message, error) {
	s.touch()
	s.mu.Lock()
	if s.convLoaded {
		out := append([]learning.Message(nil), s.conversation...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	scope, err := s.conversationScope()
	if err != nil {
		return nil, err
	}
	msgs := s.deps.Store.Conversation(ctx, scope)
	if len(msgs) == 0 {
		remote, rErr := s.deps.API.Conversation(ctx, scope)
		if rErr != nil {
			s.log.Warn("remote conversation load failed", "scope", scope.Key(), "error", rErr)
		} else if len(remote) > 0 {
			msgs = remote
			s.deps.Store.SetConversation(ctx, scope, msgs)
		}
	}

	s.mu.Lock()
	s.conversation = msgs
	s.convLoaded = true
	out := append([]learning.Message(nil), msgs...)
	s.mu.Unlock()
	return out, nil
}

// AppendMessages adds messages to the log and saves it locally and remotely.
func (s *Session) AppendMessages(ctx context.Context, msgs ...learning.Message) ([]learning.Message, error) {
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = time.Now().UTC()
		}
		if !msgs[i].Valid() {
			return nil, fmt.Errorf("%w: message %d needs a type of user or ai and a body", pkgerrors.ErrInvalidArgument, i)
		}
	}
	if _, err := s.Conversation(ctx); err != nil {
		return nil, err
	}
	scope, err := s.conversationScope()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	next := append(append([]learning.Message(nil), s.conversation...), msgs...)
	s.conversation = next
	out := append([]learning.Message(nil), next...)
	s.mu.Unlock()

	s.deps.Store.SetConversation(ctx, scope, out)
	s.background(ctx, "save_conversation", func(ctx context.Context) error {
		return s.deps.API.SaveConversation(ctx, scope, out)
	})
	return out, nil
}
