package replyshape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLooksLikeReply(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{text: "", want: false},
		{text: "   ", want: false},
		{text: "Thanks for letting me know.", want: true},
		{text: "  thank you, that works", want: true},
		{text: "I understand how hard this is.", want: true},
		{text: "I’m sorry you feel that way.", want: true},
		{text: "I'm sorry to hear that.", want: true},
		{text: "That sounds difficult.", want: true},
		{text: "Maybe you should talk to him.", want: true},
		{text: "I SUGGEST a calmer approach.", want: true},
		{text: "The reason is simple.", want: true},
		{text: "Here is what you can do next.", want: true},
		{text: "Please bring the bag.", want: false},
		{text: "He was happy to see me today.", want: false},
		{text: "Please pick him up, thanks.", want: false},
		{text: "I have concerns about your parenting.", want: false},
		{text: "The reasoning was unclear.", want: false},
		{text: "If you shouldn't be late, call me.", want: false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LooksLikeReply(tc.text), "text=%q", tc.text)
	}
}

func TestIndicatorTables(t *testing.T) {
	require.Len(t, indicators, len(Openers)+len(Phrases))
}
