package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/llm"
	"github.com/oblivion-social/oblivion-api/internal/model"
)

func TestCommentService_AddAndDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	bob := e.user(t, 2, "bob")
	carol := e.user(t, 3, "carol")
	p := e.post(t, alice, "post")

	_, err := e.comments.AddComment(ctx, bob.ID, p.ID, AddCommentInput{})
	assert.ErrorIs(t, err, ErrEmptyComment)
	_, err = e.comments.AddComment(ctx, bob.ID, "missing", AddCommentInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = e.comments.AddComment(ctx, bob.ID, p.ID, AddCommentInput{MediaURL: "https://x/y.mp3", MediaType: "audio"})
	assert.ErrorIs(t, err, ErrInvalidMedia)

	c, err := e.comments.AddComment(ctx, bob.ID, p.ID, AddCommentInput{Text: "nice one @carol"})
	require.NoError(t, err)
	assert.Equal(t, "bob", c.AuthorUsername)
	_, err = e.comments.AddComment(ctx, carol.ID, p.ID, AddCommentInput{MediaURL: "https://x/y.gif", MediaType: model.MediaGIF})
	require.NoError(t, err)

	got, err := e.posts.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.CommentCount)
	assert.Equal(t, 2, countType(e.inbox(t, alice.ID), model.NotifyComment))
	assert.Equal(t, 1, countType(e.inbox(t, carol.ID), model.NotifyMention))

	list, err := e.comments.ListComments(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c.ID, list[0].ID, "oldest first")

	assert.ErrorIs(t, e.comments.DeleteComment(ctx, alice.ID, c.ID), ErrForbidden)
	require.NoError(t, e.comments.DeleteComment(ctx, bob.ID, c.ID))
	assert.ErrorIs(t, e.comments.DeleteComment(ctx, bob.ID, c.ID), ErrCommentNotFound)
	got, err = e.posts.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.CommentCount)
}

func TestCommentService_MentioningAssistantQueuesReply(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.ai.EnsureAccount(ctx)
	require.NoError(t, err)
	alice := e.user(t, 1, "alice")
	p := e.post(t, alice, "what is gas?")

	_, err = e.comments.AddComment(ctx, alice.ID, p.ID, AddCommentInput{Text: "no trigger here"})
	require.NoError(t, err)
	assert.Len(t, e.ai.ch, 0)

	c, err := e.comments.AddComment(ctx, alice.ID, p.ID, AddCommentInput{Text: "@OblivionAI explain please"})
	require.NoError(t, err)
	require.Len(t, e.ai.ch, 1)
	job := <-e.ai.ch
	assert.Equal(t, replyJob{postID: p.ID, commentID: c.ID}, job)
	assert.Equal(t, 1, countType(e.inbox(t, assistant.ID), model.NotifyMention), "the assistant is notified like any user")
}

func TestAIResponder_Reply(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.ai.EnsureAccount(ctx)
	require.NoError(t, err)
	_, err = e.ai.EnsureAccount(ctx)
	require.NoError(t, err, "idempotent")

	alice := e.user(t, 1, "alice")
	p := e.post(t, alice, "what is gas?")
	trigger, err := e.comments.AddComment(ctx, alice.ID, p.ID, AddCommentInput{Text: "@oblivionai explain"})
	require.NoError(t, err)
	<-e.ai.ch

	e.completer.reply = "  Gas pays for computation.  "
	reply, err := e.ai.Reply(ctx, p.ID, trigger.ID)
	require.NoError(t, err)
	assert.True(t, reply.IsAI)
	assert.Equal(t, "Gas pays for computation.", reply.Text)
	assert.Equal(t, assistant.ID, reply.AuthorID)

	require.Len(t, e.completer.messages, 2)
	assert.Equal(t, "system", e.completer.messages[0].Role)
	assert.Contains(t, e.completer.messages[1].Content, "what is gas?")
	assert.Contains(t, e.completer.messages[1].Content, "@oblivionai explain")

	assert.Equal(t, 1, countType(e.inbox(t, alice.ID), model.NotifyAIReply))
	got, err := e.posts.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.CommentCount)

	// 助手自己的回复不会再次触发
	assert.Len(t, e.ai.ch, 0)
	assert.False(t, e.ai.Triggered(assistant.ID, "@oblivionai"))

	e.completer.reply = strings.Repeat("a", MaxTextLength+10)
	reply, err = e.ai.Reply(ctx, p.ID, trigger.ID)
	require.NoError(t, err)
	assert.Len(t, reply.Text, MaxTextLength)

	e.completer.reply, e.completer.err = "", llm.ErrEmptyCompletion
	_, err = e.ai.Reply(ctx, p.ID, trigger.ID)
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}

func TestAIResponder_StopDrainsQueuedReplies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.ai.EnsureAccount(ctx)
	require.NoError(t, err)
	alice := e.user(t, 1, "alice")
	p := e.post(t, alice, "what is gas?")

	for _, text := range []string{"@oblivionai one", "@oblivionai two", "@oblivionai three"} {
		_, err := e.comments.AddComment(ctx, alice.ID, p.ID, AddCommentInput{Text: text})
		require.NoError(t, err)
	}
	require.Len(t, e.ai.ch, 3)

	stop := e.ai.Start(1)
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, stop(stopCtx))
	assert.Len(t, e.ai.ch, 0)

	list, err := e.comments.ListComments(ctx, p.ID, 50)
	require.NoError(t, err)
	replies := 0
	for _, c := range list {
		if c.IsAI {
			replies++
		}
	}
	assert.Equal(t, 3, replies)
}
