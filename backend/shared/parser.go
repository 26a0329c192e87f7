package shared

import (
	"regexp"
	"strings"
)

var (
	htmlBlockPattern   = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(HTMLOpenTag) + `(.*?)` + regexp.QuoteMeta(HTMLCloseTag))
	configBlockPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ConfigOpenTag) + `(.*?)` + regexp.QuoteMeta(ConfigCloseTag))
)

// ParseShaderResponse extracts the HTML document and the control config from
// a completion. Text outside the blocks is discarded. The HTML is returned
// verbatim (trimmed) and never empty; the config must be valid JSON but its shape is not
// checked here.
func ParseShaderResponse(raw string) (*Artifact, error) {
	htmlMatch := htmlBlockPattern.FindStringSubmatch(raw)
	configMatch := configBlockPattern.FindStringSubmatch(raw)

	var missing []string
	// a whitespace-only document counts as missing
	if htmlMatch == nil || strings.TrimSpace(htmlMatch[1]) == "" {
		missing = append(missing, HTMLOpenTag)
	}
	if configMatch == nil {
		missing = append(missing, ConfigOpenTag)
	}
	if len(missing) > 0 {
		return nil, &MalformedResponseError{Missing: missing, Raw: raw}
	}

	configText := strings.TrimSpace(configMatch[1])
	config, err := ParseControlConfig([]byte(configText))
	if err != nil {
		return nil, &InvalidConfigJSONError{Raw: configMatch[1], Err: err}
	}
	if config.IsZero() {
		// an empty block or a bare null is not a config
		return nil, &InvalidConfigJSONError{Raw: configMatch[1], Err: errEmptyConfig}
	}

	return &Artifact{
		HTML:   strings.TrimSpace(htmlMatch[1]),
		Config: config,
	}, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const errEmptyConfig = parseError("config block is empty")
