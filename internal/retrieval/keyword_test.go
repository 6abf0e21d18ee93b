package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyword_TopicSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"explain commercial delivery exclusions", "fallback:commercial-use"},
		{"Rideshare driver accident", "fallback:commercial-use"},
		{"total loss threshold", "fallback:total-loss"},
		{"vehicle was TOTALED", "fallback:total-loss"},
		{"fraud red flags", "fallback:fraud"},
		{"suspicious timeline", "fallback:fraud"},
		{"vandalism coverage", "fallback:comprehensive"},
		{"theft of contents", "fallback:comprehensive"},
		{"bodily injury limits", "fallback:bodily-injury"},
		{"medical payments", "fallback:bodily-injury"},
		{"subrogation against other carrier", "fallback:subrogation"},
		{"insured not at fault", "fallback:subrogation"},
		{"weather patterns on Mars", "fallback:general"},
		{"", "fallback:general"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			res := Keyword{}.Retrieve(context.Background(), tt.query, 3)
			require.Len(t, res.Documents, 1)
			assert.Equal(t, tt.want, res.Documents[0].ID)
		})
	}
}

func TestKeyword_FirstMatchWins(t *testing.T) {
	t.Parallel()

	// "delivery" (commercial) is checked before "fraud".
	doc := MatchTopic("suspected fraud during delivery shift")
	assert.Equal(t, "fallback:commercial-use", doc.ID)

	// "injury" is checked before "not at fault".
	doc = MatchTopic("injury while not at fault")
	assert.Equal(t, "fallback:bodily-injury", doc.ID)
}

func TestKeyword_Texts(t *testing.T) {
	t.Parallel()

	assert.Contains(t, MatchTopic("commercial").Text, "Any accident during commercial use results in claim denial.")
	assert.Contains(t, MatchTopic("mars").Text, "Standard Auto Policy Coverage:")
	assert.Contains(t, MatchTopic("mars").Text, "Racing or speed contests")
}

func TestResult_Text(t *testing.T) {
	t.Parallel()

	r := Result{Documents: []Document{{ID: "a", Text: "first"}, {ID: "b", Text: "second"}}}
	assert.Equal(t, "first\n\nsecond", r.Text())
	assert.Equal(t, "", Result{}.Text())
}
