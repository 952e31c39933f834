package assets_test

import (
	"io/fs"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/assets"
	"github.com/theepangnani/emai-dev-03-sub000/core"
)

func TestFS_layouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(assets.FS, path.Join(assets.EmailTemplatesDir, name))
		assert.NoError(t, err, name)
	}
	_, err := fs.Stat(assets.FS, assets.CommonPasswordsFile)
	assert.NoError(t, err)

	migrations, err := fs.ReadDir(assets.FS, assets.MigrationsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, migrations)
}

func TestFS_emailTemplates(t *testing.T) {
	tmpls, err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, "ClassBridge", "http://localhost:3000", true)
	require.NoError(t, err)

	for _, name := range []string{"broadcast", "invite", "notification", "password_reset"} {
		assert.True(t, tmpls.Has(name), name)
	}

	text, html, err := tmpls.Render("password_reset", map[string]interface{}{"Name": "Mom", "UID": "42", "Token": "t0k3n"})
	require.NoError(t, err)
	assert.Contains(t, text, "http://localhost:3000/reset-password?uid=42&token=t0k3n")
	assert.Contains(t, html, "Mom")
}
