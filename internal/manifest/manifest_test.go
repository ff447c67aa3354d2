package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
id = "lcod://acme/widgets@1.2.0"

[workspace.scopeAliases]
util = "shared/util"
`

func TestParseExtractsNamespaceAndVersion(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "acme", m.namespace)
	assert.Equal(t, "1.2.0", m.version)
	assert.Equal(t, "shared/util", m.Workspace.ScopeAliases["util"])
}

func TestRewriteCallTargetAliasWithSegments(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	rewritten, ok, err := m.RewriteCallTarget("./util/string/trim")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lcod://acme/shared/util/string/trim@1.2.0", rewritten)
}

func TestRewriteCallTargetAliasWithoutSegments(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	rewritten, ok, err := m.RewriteCallTarget("./util")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lcod://acme/shared/util@1.2.0", rewritten)
}

func TestRewriteCallTargetLeavesAbsoluteURIsAlone(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	rewritten, ok, err := m.RewriteCallTarget("lcod://other/thing@1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "lcod://other/thing@1", rewritten)
}

func TestRewriteCallTargetUnknownAliasErrors(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	_, _, err = m.RewriteCallTarget("./missing/segments")
	assert.Error(t, err)
}

func TestParseRejectsMalformedID(t *testing.T) {
	_, err := Parse([]byte(`id = "not-a-uri"`))
	assert.Error(t, err)
}
