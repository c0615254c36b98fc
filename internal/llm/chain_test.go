package llm

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestFallbackClient(t *testing.T) {
	t.Run("skips providers without credentials", func(t *testing.T) {
		first := &fakeProvider{name: "first"}
		second := &fakeProvider{name: "second"}
		third := &fakeProvider{name: "third", available: true, text: "from third"}

		chain := NewFallbackClient(first, second, third)
		text, err := chain.Complete(context.Background(), "prompt", "")
		require.NoError(t, err)
		assert.Equal(t, "from third", text)
		assert.Zero(t, first.calls)
		assert.Zero(t, second.calls)
		assert.Equal(t, 1, third.calls)
	})

	t.Run("advances past a failing provider", func(t *testing.T) {
		broken := &fakeProvider{name: "broken", available: true, err: eris.New("boom")}
		healthy := &fakeProvider{name: "healthy", available: true, text: "ok"}

		chain := NewFallbackClient(broken, healthy)
		text, err := chain.Complete(context.Background(), "prompt", "sys")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, 1, broken.calls)
	})

	t.Run("exhaustion returns sentinel", func(t *testing.T) {
		a := &fakeProvider{name: "a", available: true, err: eris.New("down")}
		b := &fakeProvider{name: "b"}

		chain := NewFallbackClient(a, b)
		_, err := chain.Complete(context.Background(), "prompt", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProvidersExhausted)
	})

	t.Run("empty chain exhausts immediately", func(t *testing.T) {
		chain := NewFallbackClient()
		_, err := chain.Complete(context.Background(), "prompt", "")
		assert.ErrorIs(t, err, ErrProvidersExhausted)
	})
}
