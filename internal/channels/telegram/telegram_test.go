package telegram

import (
	"context"
	"testing"

	"notifycenter/internal/center"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseTarget(t *testing.T) {
	chat, thread, err := ParseTarget("-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), chat)
	assert.Zero(t, thread)

	chat, thread, err = ParseTarget(" 42/7 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), chat)
	assert.Equal(t, 7, thread)

	for _, bad := range []string{"", "abc", "0", "42/x", "42/-1"} {
		_, _, err := ParseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatMessageEscapesHTML(t *testing.T) {
	got := FormatMessage(center.Content{Title: "Door <1>", Body: "a & b", Type: center.TypeAlert})
	assert.Equal(t, "🚨 <b>Door &lt;1&gt;</b>\na &amp; b", got)

	got = FormatMessage(center.Content{Body: "low", Type: center.TypeBattery})
	assert.Equal(t, "🔋 low", got)
}

func TestSendOptions(t *testing.T) {
	opt := sendOptions(center.Content{Sound: "Silent"}, 3)
	assert.True(t, opt.DisableNotification)
	assert.Equal(t, 3, opt.ThreadID)
	assert.Nil(t, opt.ReplyMarkup)
	assert.Equal(t, tele.ModeHTML, opt.ParseMode)

	opt = sendOptions(center.Content{Sound: "alarm", Confirmable: true}, 0)
	assert.False(t, opt.DisableNotification)
	require.NotNil(t, opt.ReplyMarkup)
	require.Len(t, opt.ReplyMarkup.InlineKeyboard, 1)
	assert.Equal(t, CallbackConfirm, opt.ReplyMarkup.InlineKeyboard[0][0].Data)
}

func TestAllowedChats(t *testing.T) {
	p := &Pusher{}
	p.allowed.Store(map[int64]bool{})
	assert.False(t, p.isAllowed(42))

	p.SetAllowedChats([]string{"42/7", "oops", "-100"})
	assert.True(t, p.isAllowed(42))
	assert.True(t, p.isAllowed(-100))
	assert.False(t, p.isAllowed(43))
}

func TestConfirmCallsHook(t *testing.T) {
	calls := 0
	p := &Pusher{onConfirm: func(ctx context.Context) {
		require.NotNil(t, ctx)
		calls++
	}}
	p.confirm(42)
	assert.Equal(t, 1, calls)
}

func TestSendRejectsBadRef(t *testing.T) {
	p := &Pusher{}
	res := p.Send(context.Background(), center.Recipient{Ref: "nope"}, center.Content{})
	assert.False(t, res.OK)
	assert.Contains(t, res.Diagnostic, "invalid telegram chat")
}
