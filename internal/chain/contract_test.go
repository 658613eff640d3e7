package chain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadABI_Default(t *testing.T) {
	parsed, err := LoadABI("")
	require.NoError(t, err)

	create, ok := parsed.Methods[MethodCreateCampaign]
	require.True(t, ok)
	assert.Len(t, create.Inputs, 6)
	assert.True(t, parsed.Methods[MethodContribute].IsPayable())
}

func TestLoadABI_CompiledOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Crowdfunding.json")
	content := `{"contractName": "Crowdfunding", "abi": ` + defaultCrowdfundingABI + `, "bytecode": "0x"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, MethodVote)
}

func TestLoadABI_Errors(t *testing.T) {
	_, err := LoadABI(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = ParseABI([]byte(`[{"inputs":[],"name":"other","outputs":[],"stateMutability":"nonpayable","type":"function"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), MethodCreateCampaign)

	_, err = ParseABI([]byte(`not json`))
	assert.Error(t, err)
}
