package decoder

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyScores   = errors.New("empty score vector")
	ErrLabelMismatch = errors.New("score and label counts differ")
)

type Decision struct {
	Label      string
	Confidence float64
	Index      int
}

// Decide picks the highest score and its label. Ties keep the lowest index.
func Decide(scores []float64, labels []string) (Decision, error) {
	if len(scores) == 0 {
		return Decision{}, ErrEmptyScores
	}
	if len(scores) != len(labels) {
		return Decision{}, fmt.Errorf("%w: %d scores, %d labels", ErrLabelMismatch, len(scores), len(labels))
	}

	maxIndex := 0
	maxScore := scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > maxScore {
			maxScore = scores[i]
			maxIndex = i
		}
	}

	return Decision{
		Label:      labels[maxIndex],
		Confidence: maxScore,
		Index:      maxIndex,
	}, nil
}
