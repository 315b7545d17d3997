package memory

import (
	"testing"

	"ambientsaga/internal/store"
	"ambientsaga/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
