// Package appfs holds the files shipped inside the binary: database migrations,
// email templates and static assets.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
