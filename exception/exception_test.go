package exception

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoRecovers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo("boom", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}

func TestRun(t *testing.T) {
	assert.True(t, Run("fine", func() {}))
	assert.False(t, Run("boom", func() { panic("boom") }))
}
