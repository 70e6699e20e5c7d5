package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEmailBody(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "My screen is black.", "My screen is black."},
		{"signature stripped", "Help please\r\n-- \r\nJohn\r\nACME Corp", "Help please"},
		{"quoted lines dropped", "Still broken\n> previous message\n>> older", "Still broken"},
		{"reply header removed", "Thanks!\n\nOn Mon, Mar 10, 2025 at 9:00 AM Desk wrote:\n> hi", "Thanks!"},
		{"empty becomes placeholder", "\n> only a quote\n", "No content provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CleanEmailBody(tt.input))
		})
	}

	t.Run("long bodies are truncated", func(t *testing.T) {
		got := domain.CleanEmailBody(strings.Repeat("x", domain.MaxEmailBodyLength+100))
		assert.True(t, strings.HasSuffix(got, "[Content truncated...]"))
		assert.True(t, strings.HasPrefix(got, strings.Repeat("x", domain.MaxEmailBodyLength)))
	})
}

func TestEmailTicketTitle(t *testing.T) {
	assert.Equal(t, "No Subject", domain.EmailTicketTitle("   "))
	assert.Equal(t, "Laptop", domain.EmailTicketTitle(" Laptop "))
	assert.Len(t, domain.EmailTicketTitle(strings.Repeat("é", 200)), 254)
}

func TestInboundEmail_DedupeKey(t *testing.T) {
	assert.Equal(t, "abc@mail.example.com",
		domain.InboundEmail{MessageID: "<abc@mail.example.com>", Key: "1:5"}.DedupeKey())
	assert.Equal(t, "1:5", domain.InboundEmail{Key: "1:5"}.DedupeKey())
}

func TestInboundChatMessage(t *testing.T) {
	top := domain.InboundChatMessage{EventID: "1.1", ThreadRef: "1.1"}
	reply := domain.InboundChatMessage{EventID: "1.2", ThreadRef: "1.1"}
	bot := domain.InboundChatMessage{EventID: "1.3", ThreadRef: "1.1", BotID: "B1"}

	assert.False(t, top.IsThreadReply())
	assert.True(t, reply.IsThreadReply())
	assert.False(t, reply.IsFromBot())
	assert.True(t, bot.IsFromBot())
	assert.True(t, domain.InboundChatMessage{SubType: "bot_message"}.IsFromBot())
}

func TestInboundChatMessage_IsFromUser(t *testing.T) {
	upload := domain.InboundChatMessage{UserID: "UBOT", SubType: "file_share", ThreadRef: "1.0", EventID: "2.0"}

	assert.False(t, upload.IsFromBot())
	assert.True(t, upload.IsFromUser("UBOT"))
	assert.False(t, upload.IsFromUser("U42"))
	assert.False(t, domain.InboundChatMessage{}.IsFromUser(""))
}

func TestValidateAttachment(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		mimeType string
		size     int64
		ok       bool
	}{
		{"png image", "screen.png", "image/png", 1024, true},
		{"pdf with charset param", "doc.pdf", "application/pdf; charset=binary", 1024, true},
		{"too large", "big.png", "image/png", domain.DefaultMaxAttachmentSize + 1, false},
		{"blocked extension", "run.exe", "application/octet-stream", 10, false},
		{"disallowed type", "a.bin", "application/octet-stream", 10, false},
		{"extension mismatch", "photo.gif", "image/png", 10, false},
		{"no name", "", "image/png", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateAttachment(tt.file, tt.mimeType, tt.size, 0)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrAttachmentRejected)
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "passwd", domain.SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "my_file_1_.png", domain.SanitizeFileName(`C:\Users\me\my file(1).png`))
	assert.Equal(t, "file", domain.SanitizeFileName("/"))

	stored := domain.StoredFileName("a b.png", time.UnixMilli(1700000000000))
	assert.Equal(t, "1700000000000-a_b.png", stored)
}

func TestNewSLAPolicy(t *testing.T) {
	t.Run("valid policy", func(t *testing.T) {
		policy, err := domain.NewSLAPolicy(domain.SLAPolicyParams{
			Name:              "High",
			Priority:          domain.PriorityHigh,
			ResponseMinutes:   60,
			ResolutionMinutes: 480,
			EscalationEnabled: true,
			EscalationMinutes: 120,
		}, baseTime)
		require.NoError(t, err)

		assert.True(t, policy.IsActive)
		assert.Equal(t, 8*time.Hour, policy.ResolutionTime)
		due, ok := policy.EscalationDue(baseTime)
		assert.True(t, ok)
		assert.Equal(t, baseTime.Add(2*time.Hour), due)
	})

	t.Run("collects field errors", func(t *testing.T) {
		_, err := domain.NewSLAPolicy(domain.SLAPolicyParams{
			Priority:          "NOPE",
			ResponseMinutes:   60,
			ResolutionMinutes: 30,
			EscalationEnabled: true,
		}, baseTime)

		var verrs *apperrors.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.Errors, "name")
		assert.Contains(t, verrs.Errors, "priority")
		assert.Contains(t, verrs.Errors, "resolutionTimeMinutes")
		assert.Contains(t, verrs.Errors, "escalationAfterMinutes")
	})
}
