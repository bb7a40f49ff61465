package integration

import (
	"fmt"
	"strconv"
	"strings"
)

// FlowResultType tells the caller what to do with a FlowResult
type FlowResultType string

const (
	ResultForm        FlowResultType = "form"
	ResultCreateEntry FlowResultType = "create_entry"
)

// StepUser is the only step of the config flow
const StepUser = "user"

// Field is one input of a flow form
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// FlowResult is either a form to show or an entry to create
type FlowResult struct {
	Type   FlowResultType    `json:"type"`
	StepID string            `json:"step_id,omitempty"`
	Schema []Field           `json:"data_schema,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	Title  string            `json:"title,omitempty"`
	Entry  *Entry            `json:"entry,omitempty"`
}

// Flow is the user-facing setup wizard for one domain
type Flow struct {
	integration Integration
}

// NewFlow starts a config flow for domain
func NewFlow(domain string) (*Flow, error) {
	in, err := Lookup(domain)
	if err != nil {
		return nil, err
	}
	return &Flow{integration: in}, nil
}

// Schema lists the fields the user step asks for
func (f *Flow) Schema() []Field {
	fields := []Field{{Name: "host", Type: "string", Required: true, Default: DefaultHost}}
	if f.integration.ConfigurablePort {
		fields = append(fields, Field{Name: "port", Type: "integer", Required: true, Default: DefaultPort})
	}
	return fields
}

// StepUser shows the form when input is nil and creates an entry otherwise.
// Missing fields take their defaults; invalid ones send the form back with errors.
func (f *Flow) StepUser(input map[string]any) FlowResult {
	if input == nil {
		return f.form(nil)
	}

	errs := make(map[string]string)

	host := DefaultHost
	if v, ok := input["host"]; ok {
		s, isString := v.(string)
		switch {
		case !isString:
			errs["host"] = "invalid_host"
		case strings.TrimSpace(s) == "":
			errs["host"] = "host_required"
		default:
			host = strings.TrimSpace(s)
		}
	}

	port := DefaultPort
	if v, ok := input["port"]; ok && f.integration.ConfigurablePort {
		p, err := parsePort(v)
		if err != nil {
			errs["port"] = "invalid_port"
		} else {
			port = p
		}
	}

	if len(errs) > 0 {
		return f.form(errs)
	}

	entry := Entry{
		ID:     fmt.Sprintf("%s_%s_%d", f.integration.Domain, host, port),
		Domain: f.integration.Domain,
		Title:  f.integration.Title,
		Host:   host,
		Port:   port,
	}
	return FlowResult{Type: ResultCreateEntry, Title: entry.Title, Entry: &entry}
}

func (f *Flow) form(errs map[string]string) FlowResult {
	return FlowResult{Type: ResultForm, StepID: StepUser, Schema: f.Schema(), Errors: errs}
}

// parsePort accepts the number shapes a decoded form can carry
func parsePort(v any) (int, error) {
	var port int
	switch p := v.(type) {
	case int:
		port = p
	case int64:
		port = int(p)
	case float64:
		if p != float64(int(p)) {
			return 0, fmt.Errorf("port %v is not an integer", p)
		}
		port = int(p)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, fmt.Errorf("failed to parse port: %w", err)
		}
		port = n
	default:
		return 0, fmt.Errorf("unsupported port type %T", v)
	}

	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
