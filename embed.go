package genchatwebui

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the chat
// widget. These templates are organized in a directory structure that
// separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets, the stylesheet and the widget
// script driving form submission and the event-stream subscription.
//
//go:embed static/*
var StaticFS embed.FS
