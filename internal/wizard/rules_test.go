package wizard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "signup-gateway/internal/common/errors"
)

func answers(pairs map[string]string) Answers {
	out := Answers{}
	for k, v := range pairs {
		out[k] = json.RawMessage(v)
	}
	return out
}

func defaultFlow(t *testing.T) *Flow {
	t.Helper()
	flow, err := DefaultFlow()
	require.NoError(t, err)
	return flow
}

func questionIDs(questions []*Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestFlowVisibility(t *testing.T) {
	flow := defaultFlow(t)

	t.Run("dependent questions hidden without trigger answers", func(t *testing.T) {
		visible := flow.Visible(Answers{})
		ids := questionIDs(visible)
		assert.Contains(t, ids, "interests")
		assert.NotContains(t, ids, "music_genre")
		assert.NotContains(t, ids, "group_size")
	})

	t.Run("music interest reveals the genre question", func(t *testing.T) {
		visible := flow.Visible(answers(map[string]string{"interests": `["music"]`}))
		assert.Contains(t, questionIDs(visible), "music_genre")
	})

	t.Run("group answer reveals the size question", func(t *testing.T) {
		visible := flow.Visible(answers(map[string]string{"group": `"group"`}))
		assert.Contains(t, questionIDs(visible), "group_size")
	})
}

func TestFlowValidate(t *testing.T) {
	flow := defaultFlow(t)

	complete := answers(map[string]string{
		"interests":   `["music","food"]`,
		"music_genre": `"jazz"`,
		"group":       `"alone"`,
		"intensity":   `"balanced"`,
	})

	t.Run("complete visible answers validate", func(t *testing.T) {
		assert.NoError(t, flow.Validate(complete))
	})

	t.Run("missing required answer fails", func(t *testing.T) {
		incomplete := answers(map[string]string{"interests": `["food"]`})
		err := flow.Validate(incomplete)
		se := apperrors.AsStandard(err)
		require.NotNil(t, se)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, se.Code)
	})

	t.Run("hidden question never blocks validation", func(t *testing.T) {
		// No music interest, so music_genre is hidden and not required.
		noMusic := answers(map[string]string{
			"interests": `["food"]`,
			"group":     `"alone"`,
			"intensity": `"relaxed"`,
		})
		assert.NoError(t, flow.Validate(noMusic))
	})

	t.Run("schema violation reports the question", func(t *testing.T) {
		bad := answers(map[string]string{
			"interests": `["skydiving"]`,
			"group":     `"alone"`,
			"intensity": `"relaxed"`,
		})
		err := flow.Validate(bad)
		se := apperrors.AsStandard(err)
		require.NotNil(t, se)
		detail, ok := se.Metadata["detail"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, detail, "interests")
	})

	t.Run("optional visible question may be absent", func(t *testing.T) {
		withGroup := answers(map[string]string{
			"interests": `["food"]`,
			"group":     `"group"`,
			"intensity": `"packed"`,
		})
		assert.NoError(t, flow.Validate(withGroup), "group_size is visible but optional")
	})
}

func TestFlowDeriveLabels(t *testing.T) {
	flow := defaultFlow(t)

	t.Run("labels derived from visible answered questions", func(t *testing.T) {
		labels := flow.DeriveLabels(answers(map[string]string{
			"interests":   `["music","food"]`,
			"music_genre": `"jazz"`,
			"group":       `"alone"`,
			"intensity":   `"balanced"`,
		}))
		assert.Equal(t, []string{"interest:music", "interest:food", "genre:jazz", "company:alone", "pace:balanced"}, labels)
	})

	t.Run("hidden answers contribute nothing", func(t *testing.T) {
		labels := flow.DeriveLabels(answers(map[string]string{
			"interests":   `["food"]`,
			"music_genre": `"jazz"`,
			"intensity":   `"relaxed"`,
		}))
		assert.NotContains(t, labels, "genre:jazz")
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		flow2, err := NewFlow([]*Question{
			{ID: "a", Schema: `{"type":"string"}`, Labels: func(json.RawMessage) []string { return []string{"x"} }},
			{ID: "b", Schema: `{"type":"string"}`, Labels: func(json.RawMessage) []string { return []string{"x"} }},
		})
		require.NoError(t, err)
		labels := flow2.DeriveLabels(answers(map[string]string{"a": `"1"`, "b": `"2"`}))
		assert.Equal(t, []string{"x"}, labels)
	})
}

func TestNewFlowRejectsBadSchema(t *testing.T) {
	_, err := NewFlow([]*Question{{ID: "broken", Schema: `{"type": 12}`}})
	assert.Error(t, err)
}
