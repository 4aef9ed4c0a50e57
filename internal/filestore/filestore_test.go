package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsText(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"All Passwords.txt", true},
		{"passwords", true},
		{"LoginData.sqlite", true}, // "login" hint beats the extension
		{"Credentials backup.db", true},
		{"cookies.json", true},
		{"noextension", true},
		{"wallet.dat", false},
		{"screenshot.png", false},
		{"archive.rar", false},
		{"DeviceA\\files\\notes.TXT", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsText(tt.name), "name=%q", tt.name)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`DeviceA\files\shot.png`, "DeviceA/files/shot.png"},
		{"../../etc/passwd", "etc/passwd"},
		{"dev:ice?/sh*ot.png", "dev_ice_/sh_ot.png"},
		{"", "_"},
		{"normal/path.bin", "normal/path.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeKey(tt.raw), "raw=%q", tt.raw)
	}
}

func TestLocalStore_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewLocalStore(fs, "/artifacts")
	require.NoError(t, err)

	key, err := store.Save(context.Background(), `DeviceA\wallet.dat`, strings.NewReader("binary-bytes"), 12)
	require.NoError(t, err)
	assert.Equal(t, "DeviceA/wallet.dat", key)

	data, err := afero.ReadFile(fs, "/artifacts/DeviceA/wallet.dat")
	require.NoError(t, err)
	assert.Equal(t, "binary-bytes", string(data))
}

func TestLocalStore_SaveCancelled(t *testing.T) {
	store, err := NewLocalStore(afero.NewMemMapFs(), "/artifacts")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, "x.bin", strings.NewReader("x"), 1)
	assert.Error(t, err)
}
