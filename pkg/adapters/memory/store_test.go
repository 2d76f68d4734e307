package memory_test

import (
	"testing"

	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, memory.NewStore())
}
