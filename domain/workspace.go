package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MediaPrefix is the workspace-relative directory holding uploaded media.
const MediaPrefix = "media/promo"

// Settings is the business settings document of one workspace.
type Settings struct {
	Business BusinessSettings `json:"business" yaml:"business"`
	Schedule ScheduleSettings `json:"schedule" yaml:"schedule"`
	AI       AISettings       `json:"ai" yaml:"ai"`
	Limits   map[string]int   `json:"limits,omitempty" yaml:"limits,omitempty"`
}

type BusinessSettings struct {
	Product   string      `json:"product" yaml:"product"`
	WANumber  string      `json:"wa_number" yaml:"wa_number"`
	WALink    string      `json:"wa_link" yaml:"wa_link"`
	PriceList []PriceItem `json:"price_list,omitempty" yaml:"price_list,omitempty"`
}

type PriceItem struct {
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
}

type ScheduleSettings struct {
	Enabled  bool                    `json:"enabled" yaml:"enabled"`
	Timezone string                  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Slots    map[string]SlotSettings `json:"slots,omitempty" yaml:"slots,omitempty"`
}

// SlotSettings is one daily automation slot; Time is HH:MM.
type SlotSettings struct {
	Time    string `json:"time" yaml:"time"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type AISettings struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	APIURL  string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	Timeout int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Templates is the content templates document of one workspace.
type Templates struct {
	PromoTemplates []PromoTemplate `json:"promo_templates" yaml:"promo_templates"`
	Tips           []string        `json:"tips" yaml:"tips"`
	ValueTemplates []string        `json:"value_templates" yaml:"value_templates"`
}

// PromoTemplate is a promo text with an optional media reference of the form
// "media/promo/<file>". Older documents store a bare string.
type PromoTemplate struct {
	Text  string  `json:"text" yaml:"text"`
	Media *string `json:"media" yaml:"media"`
}

type promoTemplateDoc struct {
	Text  string  `json:"text" yaml:"text"`
	Media *string `json:"media" yaml:"media"`
}

func (t *PromoTemplate) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = PromoTemplate{Text: text}
		return nil
	}
	var doc promoTemplateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*t = PromoTemplate(doc)
	return nil
}

func (t *PromoTemplate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = PromoTemplate{Text: node.Value}
		return nil
	}
	var doc promoTemplateDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	*t = PromoTemplate(doc)
	return nil
}

// MediaFile returns the referenced file name, or "" when no media is set.
func (t PromoTemplate) MediaFile() string {
	if t.Media == nil || *t.Media == "" {
		return ""
	}
	return path.Base(*t.Media)
}

// MediaRef builds the stored reference for a media file name.
func MediaRef(filename string) string {
	return MediaPrefix + "/" + filename
}

// Keywords maps an intent to its ordered keyword list.
type Keywords map[string][]string

// Documents bundles the three config documents of a workspace.
type Documents struct {
	Settings  Settings  `json:"settings"`
	Templates Templates `json:"templates"`
	Keywords  Keywords  `json:"keywords"`
	// DanglingMedia lists promo template indices whose media does not resolve.
	DanglingMedia []int `json:"dangling_media"`
}

// MediaKind classifies an uploaded asset.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaFile describes one asset in a workspace's media set.
type MediaFile struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	Type       MediaKind `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// CookieJar is the session credential blob a worker authenticates with.
type CookieJar struct {
	CT0       string `json:"ct0"`
	AuthToken string `json:"auth_token"`
}

// Valid reports whether both required cookies are present.
func (c CookieJar) Valid() bool {
	return strings.TrimSpace(c.CT0) != "" && strings.TrimSpace(c.AuthToken) != ""
}

// ParseCookies accepts a browser Cookie-Editor export (array of name/value
// objects) or a flat object and extracts the session cookies.
func ParseCookies(raw json.RawMessage) (CookieJar, error) {
	var jar CookieJar
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var entries []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			return jar, WrapError(ErrCodeInvalid, "cookies are not valid JSON", err)
		}
		for _, e := range entries {
			switch e.Name {
			case "ct0":
				jar.CT0 = e.Value
			case "auth_token":
				jar.AuthToken = e.Value
			}
		}
	case strings.HasPrefix(trimmed, "{"):
		if err := json.Unmarshal(raw, &jar); err != nil {
			return jar, WrapError(ErrCodeInvalid, "cookies are not valid JSON", err)
		}
	default:
		return jar, fmt.Errorf("%w: expected array or object", ErrInvalidCookies)
	}
	if !jar.Valid() {
		return CookieJar{}, ErrInvalidCookies
	}
	return jar, nil
}
