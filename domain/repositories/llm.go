package repositories

import (
	"context"

	"github.com/satriahrh/sayword/domain/entities"
)

// HintGenerator produces a short hint for a word, such as an example sentence
type HintGenerator interface {
	GenerateHint(ctx context.Context, word entities.Word) (string, error)
}
