package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetFlags clears flag-bound globals so commands can be executed more than
// once in a test binary.
func resetFlags() {
	computeIn = computeInputs{}
	computeJSON = false
	exportIn = computeInputs{}
	exportOut = ""
	saveIn = computeInputs{}
	saveID, savePeriod, saveRegime, saveForm, saveValues = "", "", "", "", ""
	saveSets = nil
	saveExit = false
	loadID = ""
	submitID = ""
	servePort = 0
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// inTempDir changes to a fresh directory so no config.yaml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	t.Setenv("FILING_LOG_LEVEL", "error")
	return dir
}

const salaryFactsJSON = `[
	{"category":"income","subcategory":"salary","amount":"900000","provenance":"verified_statement","employer":"Acme"},
	{"category":"income","subcategory":"salary","amount":"880000","provenance":"self_reported_module"},
	{"category":"deduction","subcategory":"80c","amount":"150000","provenance":"user_manual_entry","section":"80C"},
	{"category":"tax_withheld","subcategory":"tds_salary","amount":"50000","provenance":"verified_statement"}
]`

const residentProfileYAML = `
profile:
  is_resident: true
  age: 30
`

func writeInputs(t *testing.T, dir string) (factsPath, profilePath string) {
	t.Helper()
	factsPath = filepath.Join(dir, "facts.json")
	profilePath = filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(factsPath, []byte(salaryFactsJSON), 0o600))
	require.NoError(t, os.WriteFile(profilePath, []byte(residentProfileYAML), 0o600))
	return factsPath, profilePath
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
