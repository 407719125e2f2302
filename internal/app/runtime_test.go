package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTestModeSetByTestingPackage(t *testing.T) {
	require.Equal(t, "1", os.Getenv(TestModeEnv))
	require.True(t, InTestMode())
}
