package assertion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/rewrite"
)

func TestInstallRewriteMode(t *testing.T) {
	state, undo := Install(Config{
		Mode:             ModeRewrite,
		RewriteSupported: true,
		CacheDir:         t.TempDir(),
	})
	defer undo()

	assert.Equal(t, ModeRewrite, state.Mode)
	require.NotNil(t, state.Hook())
	_, ok := state.Loader().(*rewrite.Hook)
	assert.True(t, ok, "rewrite mode loads through the hook")
}

func TestInstallDefaultsToRewrite(t *testing.T) {
	state, undo := Install(Config{RewriteSupported: true, CacheDir: t.TempDir()})
	defer undo()
	assert.Equal(t, ModeRewrite, state.Mode)
}

func TestInstallDowngradesWithoutCapability(t *testing.T) {
	state, undo := Install(Config{Mode: ModeRewrite, RewriteSupported: false})
	defer undo()

	assert.Equal(t, ModeReinterp, state.Mode)
	assert.Nil(t, state.Hook())
	_, ok := state.Loader().(rewrite.SourceLoader)
	assert.True(t, ok, "without a hook scripts load from source")
}

func TestInstallPlainMode(t *testing.T) {
	state, undo := Install(Config{Mode: ModePlain, RewriteSupported: true})
	defer undo()
	assert.Equal(t, ModePlain, state.Mode)
	assert.Nil(t, state.Hook())
}

func TestRegisterRewriteWithoutHookIsNoop(t *testing.T) {
	state, undo := Install(Config{Mode: ModePlain, RewriteSupported: true})
	defer undo()
	assert.NotPanics(t, func() { state.RegisterRewrite("helpers") })
	assert.NotPanics(t, func() { state.SetSession(nil) })
}

func TestUndoDetachesHook(t *testing.T) {
	state, undo := Install(Config{
		Mode:             ModeRewrite,
		RewriteSupported: true,
		CacheDir:         t.TempDir(),
	})
	require.NotNil(t, state.Hook())
	undo()
	assert.Nil(t, state.Hook())
	assert.NotPanics(t, func() { state.RegisterRewrite("late") })
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"rewrite", ModeRewrite, false},
		{"reinterp", ModeReinterp, false},
		{"plain", ModePlain, false},
		{"fancy", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunningOnCI(t *testing.T) {
	t.Setenv("CI", "")
	assert.True(t, RunningOnCI(), "presence counts, even when empty")

	t.Setenv("CI", "true")
	assert.True(t, RunningOnCI())
}
