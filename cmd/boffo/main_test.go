package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boffo/internal/credentials"
	"boffo/internal/folio"
	"boffo/internal/sheet"
)

func scriptedPrompter(input string) (*terminalPrompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	p := &terminalPrompter{in: bufio.NewReader(strings.NewReader(input)), out: out}
	p.readPassword = p.readLine
	return p, out
}

func TestTerminalPrompter(t *testing.T) {
	p, out := scriptedPrompter("https://folio.example.edu\nfs00001137\ncirc-admin\ncorrect horse\n")

	req, err := p.PromptCredentials(context.Background(), credentials.Credentials{}, nil)
	require.NoError(t, err)
	assert.Equal(t, folio.LoginRequest{
		ServerURL: "https://folio.example.edu",
		TenantID:  "fs00001137",
		Username:  "circ-admin",
		Password:  "correct horse",
	}, req)
	assert.Contains(t, out.String(), "FOLIO server URL: ")
}

func TestTerminalPrompterKeepsStoredValues(t *testing.T) {
	p, out := scriptedPrompter("\n\nreader\nsecret\n")
	current := credentials.Credentials{ServerURL: "https://folio.example.edu", TenantID: "fs00001137"}

	req, err := p.PromptCredentials(context.Background(), current, assert.AnError)
	require.NoError(t, err)
	assert.Equal(t, current.ServerURL, req.ServerURL)
	assert.Equal(t, current.TenantID, req.TenantID)
	assert.Contains(t, out.String(), "Login failed: "+assert.AnError.Error())
	assert.Contains(t, out.String(), "[https://folio.example.edu]")
}

func TestTerminalPrompterCancelsOnEOF(t *testing.T) {
	p, _ := scriptedPrompter("https://folio.example.edu\n")

	_, err := p.PromptCredentials(context.Background(), credentials.Credentials{}, nil)
	assert.ErrorIs(t, err, folio.ErrCancelled)
}

func TestReadKeysFileText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.txt")
	require.NoError(t, os.WriteFile(path, []byte("35047019076454\n\n  35047000000100  \n"), 0o600))

	keys, err := readKeysFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"35047019076454", "35047000000100"}, keys)
}

func TestReadKeysFileWorkbook(t *testing.T) {
	wb := sheet.NewWorkbook()
	h, err := wb.CreateSheet([]string{"Barcode"})
	require.NoError(t, err)
	require.NoError(t, wb.WriteRows(h, 1, [][]string{{"35047019076454"}, {"35047000000100"}}))
	path := filepath.Join(t.TempDir(), "barcodes.XLSX")
	require.NoError(t, wb.Save(path))

	keys, err := readKeysFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"35047019076454", "35047000000100"}, keys)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&app{prompter: folio.PrompterFunc(func(context.Context, credentials.Credentials, error) (folio.LoginRequest, error) {
		return folio.LoginRequest{}, folio.ErrCancelled
	})})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFieldsCommands(t *testing.T) {
	t.Setenv("BOFFO_CONFIG", "")
	t.Setenv("BOFFO_STORE", "file")
	t.Setenv("BOFFO_FILE_PATH", filepath.Join(t.TempDir(), "boffo", "properties.yaml"))

	out, err := run(t, "fields", "set", "Title", "Status")
	require.NoError(t, err)
	assert.Equal(t, "Enabled: Barcode, Title, Status\n", out)

	out, err = run(t, "fields")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] Barcode (required)\n")
	assert.Contains(t, out, "[x] Title\n")
	assert.Contains(t, out, "[ ] Call Number\n")

	_, err = run(t, "fields", "set", "Shoe Size")
	assert.ErrorIs(t, err, folio.ErrConfig)
}

func TestLoginCommandCancelled(t *testing.T) {
	t.Setenv("BOFFO_CONFIG", "")
	t.Setenv("BOFFO_STORE", "memory")

	_, err := run(t, "login")
	assert.ErrorIs(t, err, folio.ErrCancelled)
	assert.Equal(t, "Operation cancelled.", folio.Advice(err))
}

func TestLookupWithoutLoginIsCancelled(t *testing.T) {
	t.Setenv("BOFFO_CONFIG", "")
	t.Setenv("BOFFO_STORE", "memory")

	_, err := run(t, "barcodes", "35047019076454", "--out", filepath.Join(t.TempDir(), "out.xlsx"))
	assert.ErrorIs(t, err, folio.ErrCancelled)
}

func TestBadStoreFlag(t *testing.T) {
	t.Setenv("BOFFO_CONFIG", "")

	_, err := run(t, "--store", "dynamo", "logout")
	assert.Error(t, err)
}
