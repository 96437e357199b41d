// File: internal/domain/ports/usecase/library.go
package usecase

import (
	"context"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

// DocumentLibrary is the document list collaborator used for passive
// completion detection.
type DocumentLibrary interface {
	Count() int
	Refresh(ctx context.Context) (int, error)
}

// DocumentCatalog extends DocumentLibrary with read access for the API.
type DocumentCatalog interface {
	DocumentLibrary
	Documents() []model.Document
	Find(id string) (model.Document, bool)
}
