package results

import (
	"sort"

	"github.com/Krimson/xray-triage/pkg/models"
)

// EmptyPredictionError - в предсказании нет ни одной болезни.
// Без верхней болезни нечего сохранять и показывать.
type EmptyPredictionError struct {
	ImageURL string
}

func (e *EmptyPredictionError) Error() string {
	if e.ImageURL == "" {
		return "prediction contains no diseases"
	}
	return "prediction contains no diseases for image " + e.ImageURL
}

// Rank возвращает копию предсказания, отсортированную по убыванию вероятности.
// Порядок равных вероятностей сохраняется. Входное значение не меняется.
func Rank(p *models.PredictionResult) (*models.PredictionResult, error) {
	if p == nil {
		return nil, &EmptyPredictionError{}
	}
	if len(p.TopDiseases) == 0 {
		return nil, &EmptyPredictionError{ImageURL: p.ImageURL}
	}

	ranked := &models.PredictionResult{
		ImageURL:    p.ImageURL,
		TopDiseases: make([]models.DiseasePrediction, len(p.TopDiseases)),
	}
	copy(ranked.TopDiseases, p.TopDiseases)

	sort.SliceStable(ranked.TopDiseases, func(i, j int) bool {
		return ranked.TopDiseases[i].Probability > ranked.TopDiseases[j].Probability
	})
	return ranked, nil
}

// Top возвращает самую вероятную болезнь
func Top(p *models.PredictionResult) (models.DiseasePrediction, error) {
	ranked, err := Rank(p)
	if err != nil {
		return models.DiseasePrediction{}, err
	}
	return ranked.TopDiseases[0], nil
}

// contains проверяет, что болезнь есть в ранжированном списке
func contains(p *models.PredictionResult, disease string) bool {
	if p == nil {
		return false
	}
	for _, d := range p.TopDiseases {
		if d.Disease == disease {
			return true
		}
	}
	return false
}
