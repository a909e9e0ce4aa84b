// Package web holds the wallet page template and its stylesheet.
package web

import "embed"

// TemplatesFS holds templates/index.html, rendered by internal/http.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
