package transport

import (
	"encoding/json"

	"github.com/fastygo/botfleet/domain"
)

type CreateAccountRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	WANumber    string `json:"wa_number"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
}

// ToDomain builds the account; new accounts are enabled unless stated otherwise.
func (r CreateAccountRequest) ToDomain() domain.Account {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return domain.Account{
		ID:          r.ID,
		Name:        r.Name,
		Username:    r.Username,
		WANumber:    r.WANumber,
		Description: r.Description,
		Enabled:     enabled,
	}
}

// UpdateAccountRequest is a partial update. ID may be echoed back but never changed.
type UpdateAccountRequest struct {
	ID *string `json:"id,omitempty"`
	domain.AccountPatch
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type CookiesRequest struct {
	Cookies json.RawMessage `json:"cookies"`
}

type AssignMediaRequest struct {
	TemplateIndex *int    `json:"template_index"`
	MediaFile     *string `json:"media_file"`
}

type ConversionRequest struct {
	Source          string  `json:"source"`
	WAMessages      int     `json:"wa_messages"`
	ConfirmedOrders int     `json:"confirmed_orders"`
	Revenue         float64 `json:"revenue"`
	Notes           string  `json:"notes"`
}

func (r ConversionRequest) ToDomain() domain.Conversion {
	return domain.Conversion{
		Source:          r.Source,
		WAMessages:      r.WAMessages,
		ConfirmedOrders: r.ConfirmedOrders,
		Revenue:         r.Revenue,
		Notes:           r.Notes,
	}
}
