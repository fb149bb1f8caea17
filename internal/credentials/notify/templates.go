package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltpl "html/template"
	"os"
	texttpl "text/template"

	"gopkg.in/yaml.v3"
)

const (
	TemplateVerifyEmail   = "verify_email"
	TemplateVerifyPhone   = "verify_phone"
	TemplateResetPassword = "reset_password"
)

//go:embed templates.yaml
var defaultTemplates []byte

type Vars struct {
	Username string
	Code     string
	Link     string
	TTL      string
}

type templateSource struct {
	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
	HTML    string `yaml:"html"`
}

type compiled struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmltpl.Template // nil when the source has no html part
}

type Templates struct {
	byName map[string]compiled
}

// LoadTemplates parses the templates in path, or the embedded defaults when
// path is empty. Every known template must be present.
func LoadTemplates(path string) (*Templates, error) {
	raw := defaultTemplates
	if path != "" {
		b, err := os.ReadFile(path) // #nosec G304 -- operator supplied
		if err != nil {
			return nil, fmt.Errorf("notify: read templates: %w", err)
		}
		raw = b
	}
	return ParseTemplates(raw)
}

func ParseTemplates(raw []byte) (*Templates, error) {
	var src map[string]templateSource
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}

	t := &Templates{byName: make(map[string]compiled, len(src))}
	for name, s := range src {
		var (
			c   compiled
			err error
		)
		if c.subject, err = texttpl.New(name + ".subject").Parse(s.Subject); err != nil {
			return nil, fmt.Errorf("notify: %s subject: %w", name, err)
		}
		if c.text, err = texttpl.New(name + ".text").Parse(s.Text); err != nil {
			return nil, fmt.Errorf("notify: %s text: %w", name, err)
		}
		if s.HTML != "" {
			if c.html, err = htmltpl.New(name + ".html").Parse(s.HTML); err != nil {
				return nil, fmt.Errorf("notify: %s html: %w", name, err)
			}
		}
		t.byName[name] = c
	}

	for _, name := range []string{TemplateVerifyEmail, TemplateVerifyPhone, TemplateResetPassword} {
		if _, ok := t.byName[name]; !ok {
			return nil, fmt.Errorf("notify: template %q missing", name)
		}
	}
	return t, nil
}

// Render fills the named template. Channel and To are left for the caller.
func (t *Templates) Render(name string, v Vars) (Message, error) {
	c, ok := t.byName[name]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown template %q", name)
	}

	var msg Message
	var buf bytes.Buffer
	if err := c.subject.Execute(&buf, v); err != nil {
		return Message{}, err
	}
	msg.Subject = buf.String()

	buf.Reset()
	if err := c.text.Execute(&buf, v); err != nil {
		return Message{}, err
	}
	msg.Text = buf.String()

	if c.html != nil {
		buf.Reset()
		if err := c.html.Execute(&buf, v); err != nil {
			return Message{}, err
		}
		msg.HTML = buf.String()
	}
	return msg, nil
}
