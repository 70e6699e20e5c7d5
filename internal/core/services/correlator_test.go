package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/mocks"
	"github.com/lorrc/service-desk-engine/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCorrelator_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("first chat link wins", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)

		tickets.On("LinkChatThread", ctx, int64(7), "1700000000.000100").Return(true, nil).Once()
		tickets.On("LinkChatThread", ctx, int64(7), "1700000000.000200").Return(false, nil).Once()

		linked, err := c.LinkTicketToConversation(ctx, 7, domain.ChatThread("1700000000.000100"))
		require.NoError(t, err)
		assert.True(t, linked)

		linked, err = c.LinkTicketToConversation(ctx, 7, domain.ChatThread("1700000000.000200"))
		require.NoError(t, err)
		assert.False(t, linked)
		tickets.AssertExpectations(t)
	})

	t.Run("empty thread is rejected", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)

		_, err := c.LinkTicketToConversation(ctx, 7, domain.ChatThread(""))

		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
		tickets.AssertNotCalled(t, "LinkChatThread", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email handle needs no write", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)

		linked, err := c.LinkTicketToConversation(ctx, 7, domain.EmailSubject("[Ticket #000007] Printer"))

		require.NoError(t, err)
		assert.False(t, linked)
		tickets.AssertExpectations(t)
	})
}

func TestCorrelator_FindTicketByHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("chat thread", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)
		want := &domain.Ticket{ID: 3, Number: "TKT-000003"}
		tickets.On("GetByChatThread", ctx, "1700000000.000100").Return(want, nil)

		got, err := c.FindTicketByHandle(ctx, domain.ChatThread("1700000000.000100"))

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("email tag routes by number", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)
		want := &domain.Ticket{ID: 123, Number: "TKT-000123"}
		tickets.On("GetByNumber", ctx, "TKT-000123").Return(want, nil)

		got, err := c.FindTicketByHandle(ctx, domain.EmailSubject("RE: [Ticket #000123] Printer on fire"))

		require.NoError(t, err)
		assert.Equal(t, int64(123), got.ID)
	})

	t.Run("subject without tag", func(t *testing.T) {
		tickets := mocks.NewMockTicketRepository()
		c := services.NewCorrelator(tickets, mocks.NewMockProcessedEventStore(), nil)

		_, err := c.FindTicketByHandle(ctx, domain.EmailSubject("Printer on fire"))

		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
		tickets.AssertNotCalled(t, "GetByNumber", mock.Anything, mock.Anything)
	})
}

func TestCorrelator_Dedupe(t *testing.T) {
	ctx := context.Background()

	t.Run("checking does not record", func(t *testing.T) {
		events := mocks.NewMockProcessedEventStore()
		c := services.NewCorrelator(mocks.NewMockTicketRepository(), events, nil)
		events.On("Seen", ctx, domain.ChannelChat, "ts-1").Return(false, nil).Twice()

		dup, err := c.IsDuplicate(ctx, domain.ChannelChat, "ts-1")
		require.NoError(t, err)
		assert.False(t, dup)

		dup, err = c.IsDuplicate(ctx, domain.ChannelChat, "ts-1")
		require.NoError(t, err)
		assert.False(t, dup)
		events.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recorded id is a duplicate", func(t *testing.T) {
		events := mocks.NewMockProcessedEventStore()
		c := services.NewCorrelator(mocks.NewMockTicketRepository(), events, nil)
		events.On("Seen", ctx, domain.ChannelChat, "ts-1").Return(true, nil)

		dup, err := c.IsDuplicate(ctx, domain.ChannelChat, "ts-1")

		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("empty id is never looked up", func(t *testing.T) {
		events := mocks.NewMockProcessedEventStore()
		c := services.NewCorrelator(mocks.NewMockTicketRepository(), events, nil)

		dup, err := c.IsDuplicate(ctx, domain.ChannelEmail, "")
		c.MarkProcessed(ctx, domain.ChannelEmail, "")

		require.NoError(t, err)
		assert.False(t, dup)
		events.AssertNotCalled(t, "Seen", mock.Anything, mock.Anything, mock.Anything)
		events.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		events := mocks.NewMockProcessedEventStore()
		c := services.NewCorrelator(mocks.NewMockTicketRepository(), events, nil)
		events.On("Seen", ctx, domain.ChannelEmail, "msg-1").Return(false, errors.New("redis down"))

		dup, err := c.IsDuplicate(ctx, domain.ChannelEmail, "msg-1")

		require.Error(t, err)
		assert.False(t, dup)
	})

	t.Run("mark records and swallows errors", func(t *testing.T) {
		events := mocks.NewMockProcessedEventStore()
		c := services.NewCorrelator(mocks.NewMockTicketRepository(), events, nil)
		events.On("Record", ctx, domain.ChannelChat, "ts-2").Return(errors.New("redis down"))

		c.MarkProcessed(ctx, domain.ChannelChat, "ts-2")

		events.AssertExpectations(t)
	})
}
