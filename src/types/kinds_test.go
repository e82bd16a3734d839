package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindClassification(t *testing.T) {
	assert.True(t, KindLecture.IsPollable())
	assert.True(t, KindContest.IsPollable())
	assert.False(t, KindContestEditorial.IsPollable())
	assert.False(t, KindExtraLecture.IsPollable())
	assert.False(t, KindEveningActivity.IsPollable())

	assert.True(t, KindLecture.IsFeedbackEligible())
	assert.True(t, KindContest.IsFeedbackEligible())
	assert.True(t, KindContestEditorial.IsFeedbackEligible())
	assert.False(t, KindEveningActivity.IsFeedbackEligible())
}

func TestKindValidity(t *testing.T) {
	for _, k := range AllEventKinds {
		assert.True(t, k.IsValid(), "kind %s", k)
		assert.NotEmpty(t, k.DisplayName())
	}
	assert.False(t, EventKind("workshop").IsValid())
	assert.Equal(t, "workshop", EventKind("workshop").DisplayName())
}

func TestFeedbackTemplates(t *testing.T) {
	for _, k := range AllEventKinds {
		tmpl := FeedbackTemplate(k)
		assert.NotEmpty(t, tmpl, "kind %s", k)
		assert.LessOrEqual(t, len(tmpl), 10, "kind %s", k)
	}
	assert.Nil(t, FeedbackTemplate(EventKind("workshop")))
}
