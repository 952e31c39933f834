package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	// Sending is best effort: failures are logged by the implementation, never returned.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailTemplates holds the parsed email templates. It is immutable once built.
	EmailTemplates struct {
		appName         string
		frontendBaseURL string
		text            map[string]*texttmpl.Template
		html            map[string]*htmltmpl.Template
	}
)

// ParseEmailTemplates parses every `<name>.txt` and `<name>.gohtml` file in dir, each on top of the `_base` layout.
func ParseEmailTemplates(fsys fs.FS, dir, appName, frontendBaseURL string, strict bool) (*EmailTemplates, error) {
	tmpls := &EmailTemplates{
		appName:         appName,
		frontendBaseURL: frontendBaseURL,
		text:            make(map[string]*texttmpl.Template),
		html:            make(map[string]*htmltmpl.Template),
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading templates dir")
	}
	for _, entry := range entries {
		fname := entry.Name()
		ext := path.Ext(fname)
		if entry.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(dir, "_base.txt"), path.Join(dir, fname))
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			tmpls.text[name] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(dir, "_base.gohtml"), path.Join(dir, fname))
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			tmpls.html[name] = tmpl
		}
	}
	return tmpls, nil
}

// Render executes the text and html templates registered under name.
// A missing variant renders as an empty string.
func (t *EmailTemplates) Render(name string, data interface{}) (text, html string, err error) {
	ctxData := ContextData{
		AppName:         t.appName,
		FrontendBaseURL: t.frontendBaseURL,
		Data:            data,
	}

	if tmpl, ok := t.text[name]; ok {
		var buff bytes.Buffer
		if err = tmpl.Execute(&buff, ctxData); err != nil {
			return "", "", errors.Wrapf(err, "rendering %s.txt", name)
		}
		text = buff.String()
	}
	if tmpl, ok := t.html[name]; ok {
		var buff bytes.Buffer
		if err = tmpl.Execute(&buff, ctxData); err != nil {
			return "", "", errors.Wrapf(err, "rendering %s.gohtml", name)
		}
		html = buff.String()
	}
	if text == "" && html == "" {
		return "", "", errors.Errorf("email template %q not found", name)
	}
	return text, html, nil
}

func (t *EmailTemplates) Has(name string) bool {
	_, txt := t.text[name]
	_, html := t.html[name]
	return txt || html
}

// Render fills TextContent and HTMLContent from BodyStr or the message template.
func (m *EmailMessage) Render(tmpls *EmailTemplates) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" || tmpls == nil {
		return nil
	}
	text, html, err := tmpls.Render(m.TemplateName, m.TemplateData)
	if err != nil {
		return err
	}
	m.TextContent, m.HTMLContent = text, html
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
