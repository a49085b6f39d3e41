package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	httpH "github.com/yungbote/diveops-backend/internal/http/handlers"
)

type Handlers struct {
	Content   *httpH.ContentHandler
	Integrity *httpH.IntegrityHandler
	Health    *httpH.HealthHandler
}

func wireHandlers(db *gorm.DB, r repos.Repos, s Services) Handlers {
	return Handlers{
		Content:   httpH.NewContentHandler(s.Podcasts, s.Decks, r.GenerationLogs),
		Integrity: httpH.NewIntegrityHandler(s.Scheduler),
		Health:    httpH.NewHealthHandler(db),
	}
}
