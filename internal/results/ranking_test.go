package results

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/xray-triage/pkg/models"
)

func TestRank_SortsCopyDescending(t *testing.T) {
	input := &models.PredictionResult{
		ImageURL: "https://example.com/x2.png",
		TopDiseases: []models.DiseasePrediction{
			{Disease: "Mass", Probability: 0.1},
			{Disease: "Edema", Probability: 0.7},
			{Disease: "Nodule", Probability: 0.3},
			{Disease: "Hernia", Probability: 0.3},
		},
	}
	before := *input
	before.TopDiseases = append([]models.DiseasePrediction(nil), input.TopDiseases...)

	ranked, err := Rank(input)
	require.NoError(t, err)

	want := []models.DiseasePrediction{
		{Disease: "Edema", Probability: 0.7},
		{Disease: "Nodule", Probability: 0.3},
		{Disease: "Hernia", Probability: 0.3},
		{Disease: "Mass", Probability: 0.1},
	}
	if diff := cmp.Diff(want, ranked.TopDiseases); diff != "" {
		t.Errorf("ranked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&before, input); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestRank_Empty(t *testing.T) {
	_, err := Rank(&models.PredictionResult{ImageURL: "x"})

	var emptyErr *EmptyPredictionError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "x", emptyErr.ImageURL)

	_, err = Rank(nil)
	assert.True(t, errors.As(err, &emptyErr))
}

func TestTop(t *testing.T) {
	top, err := Top(happyPrediction())
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", top.Disease)
}
