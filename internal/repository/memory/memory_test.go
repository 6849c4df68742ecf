package memory

import (
	"testing"

	"parley/internal/repository"
	"parley/internal/repository/repotest"
)

func TestStoreConformance(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		return New()
	})
}
