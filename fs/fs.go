// Package appfs embeds static app files (DB migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
