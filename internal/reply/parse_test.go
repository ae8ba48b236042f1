package reply

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `{"messages":[{"text":"Hi!","facialExpression":"smile","animation":"Talking_0"},{"text":"How are you?","facialExpression":"default","animation":"Idle"}]}`

func TestParseFencedMatchesUnfenced(t *testing.T) {
	cases := []string{
		sampleEnvelope,
		`[{"text":"Hi!","facialExpression":"smile","animation":"Talking_0"}]`,
		`[]`,
	}
	for _, body := range cases {
		plain, err := Parse(body)
		require.NoError(t, err)

		for _, fenced := range []string{
			"```json\n" + body + "\n```",
			"```json" + body + "```",
			"  ```json\n" + body + "\n```  \n",
			"```\n" + body + "\n```",
		} {
			got, err := Parse(fenced)
			require.NoError(t, err, "fenced input %q", fenced)
			require.Equal(t, plain, got)
		}
	}
}

func TestParseEnvelopeAndBareListAgree(t *testing.T) {
	fromEnvelope, err := Parse(sampleEnvelope)
	require.NoError(t, err)

	var env struct {
		Messages json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(sampleEnvelope), &env))
	fromList, err := Parse(string(env.Messages))
	require.NoError(t, err)

	require.Equal(t, fromEnvelope, fromList)
	require.Len(t, fromList, 2)
	require.Equal(t, "Hi!", fromList[0].Text)
	require.Equal(t, ExpressionSmile, fromList[0].FacialExpression)
	require.Equal(t, AnimationIdle, fromList[1].Animation)
}

func TestParsePassesUnknownEnumsThrough(t *testing.T) {
	got, err := Parse(`[{"text":"boo","facialExpression":"smirk","animation":"Breakdance"}]`)
	require.NoError(t, err)
	require.Equal(t, "smirk", got[0].FacialExpression)
	require.Equal(t, "Breakdance", got[0].Animation)
}

func TestParseDropsModelSuppliedAssets(t *testing.T) {
	got, err := Parse(`[{"text":"x","facialExpression":"sad","animation":"Crying","audio":"AAAA","lipsync":{"mouthCues":[]}}]`)
	require.NoError(t, err)
	require.Empty(t, got[0].Audio)
	require.Nil(t, got[0].Lipsync)
	require.False(t, got[0].Ready())
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"fence only":       "```json\n```",
		"not json":         "Sure! Here is your answer.",
		"truncated":        `{"messages":[{"text":"Hi"`,
		"scalar":           `42`,
		"object no field":  `{"text":"Hi!","facialExpression":"smile","animation":"Talking_0"}`,
		"messages not arr": `{"messages":"Hi"}`,
		"null messages":    `{"messages":null}`,
		"element string":   `["Hi!"]`,
		"missing text":     `[{"facialExpression":"smile","animation":"Talking_0"}]`,
		"text not string":  `[{"text":7,"facialExpression":"smile","animation":"Talking_0"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedReply), "err = %v", err)
			var mre *MalformedReplyError
			require.ErrorAs(t, err, &mre)
		})
	}
}

func TestClampSegments(t *testing.T) {
	segs := []Segment{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}}

	kept, dropped, err := ClampSegments(segs, DefaultMaxSegments, false)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Equal(t, []Segment{{Text: "a"}, {Text: "b"}, {Text: "c"}}, kept)

	_, _, err = ClampSegments(segs, DefaultMaxSegments, true)
	require.ErrorIs(t, err, ErrMalformedReply)

	kept, dropped, err = ClampSegments(segs[:2], DefaultMaxSegments, true)
	require.NoError(t, err)
	require.Zero(t, dropped)
	require.Len(t, kept, 2)
}
