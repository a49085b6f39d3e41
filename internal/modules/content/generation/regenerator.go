package generation

import (
	"context"

	"github.com/google/uuid"
)

// Regenerator rebuilds a lesson's media on behalf of the integrity audit.
type Regenerator struct {
	Podcasts *PodcastService
	Decks    *DeckService
}

func (r *Regenerator) RegeneratePodcast(ctx context.Context, lessonID uuid.UUID) (string, error) {
	res, err := r.Podcasts.Generate(ctx, lessonID, SourceIntegrity)
	if err != nil {
		return "", err
	}
	return res.PodcastURL, nil
}

func (r *Regenerator) RegeneratePDF(ctx context.Context, lessonID uuid.UUID) (string, error) {
	res, err := r.Decks.Generate(ctx, lessonID, SourceIntegrity)
	if err != nil {
		return "", err
	}
	return res.PDFURL, nil
}
