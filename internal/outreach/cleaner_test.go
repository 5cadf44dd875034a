package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanGeneratedStripsLeadInAndQuotes(t *testing.T) {
	raw := "Sure! Here's a friendly message you could send:\n\n\"Hey, loved your latest reel - the editing is unreal. Would love to chat!\""
	assert.Equal(t,
		"Hey, loved your latest reel - the editing is unreal. Would love to chat!",
		CleanGenerated(raw))
}

func TestCleanGeneratedTable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "already clean",
			raw:  "Hey, great content!",
			want: "Hey, great content!",
		},
		{
			name: "label prefix",
			raw:  "Message: Hey, great content!",
			want: "Hey, great content!",
		},
		{
			name: "code fences",
			raw:  "```\nHey, great content!\n```",
			want: "Hey, great content!",
		},
		{
			name: "trailing commentary",
			raw:  "Hey, great content!\n\nLet me know if you'd like a different tone!",
			want: "Hey, great content!",
		},
		{
			name: "lead-in plus label plus trailer",
			raw:  "Okay, here is a draft:\nDM: Hey, great content!\nFeel free to tweak it.",
			want: "Hey, great content!",
		},
		{
			name: "curly quotes",
			raw:  "“Hey, great content!”",
			want: "Hey, great content!",
		},
		{
			name: "mid-message quote survives",
			raw:  `Loved the "before and after" cut!`,
			want: `Loved the "before and after" cut!`,
		},
		{
			name: "whitespace only",
			raw:  "   \n\t ",
			want: "",
		},
		{
			name: "multiline message survives",
			raw:  "Here's your message:\n\nHey!\nThat reel was great.",
			want: "Hey!\nThat reel was great.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanGenerated(tt.raw))
		})
	}
}
