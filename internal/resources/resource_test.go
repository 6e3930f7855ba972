package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"React Basics for Beginners":   DifficultyBeginner,
		"Advanced Kubernetes Patterns": DifficultyAdvanced,
		"Intro to Go":                  DifficultyBeginner,
		"Learn Python":                 DifficultyIntermediate,
		"Master Rust, beginner track":  DifficultyBeginner,
		"SQL 101":                      DifficultyBeginner,
	}
	for title, want := range cases {
		assert.Equal(t, want, ClassifyDifficulty(title), title)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "machine_learning", Key("  Machine   Learning "))
	assert.Equal(t, "machine_learning", Key("machine learning"))
	assert.Equal(t, "go", Key("GO"))
	assert.Equal(t, "", Key("   "))
}

func TestToResource(t *testing.T) {
	r := toResource(Hit{VideoID: "abc123", Title: "Intro to Docker", Thumbnail: "https://i.ytimg.com/x.jpg"})

	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", r.URL)
	assert.Equal(t, "video", r.Type)
	assert.True(t, r.Free)
	assert.Equal(t, SourceYouTube, r.Source)
	assert.Equal(t, DifficultyBeginner, r.Difficulty)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", EmbedURL(r.VideoID))
}
