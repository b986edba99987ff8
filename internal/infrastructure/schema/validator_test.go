package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastygo/botfleet/domain"
)

func TestValidate(t *testing.T) {
	v := MustNewValidator()

	cases := []struct {
		name  string
		doc   Document
		raw   string
		valid bool
	}{
		{"settings ok", Settings, `{"business":{"product":"Soap","price_list":[{"name":"a","price":10}]},"schedule":{"slots":{"morning":{"time":"08:00","enabled":true}}}}`, true},
		{"settings bad slot time", Settings, `{"schedule":{"slots":{"morning":{"time":"8am"}}}}`, false},
		{"settings negative price", Settings, `{"business":{"price_list":[{"name":"a","price":-1}]}}`, false},
		{"templates mixed forms", Templates, `{"promo_templates":["plain",{"text":"x","media":null}],"tips":["t"]}`, true},
		{"templates bad item", Templates, `{"promo_templates":[42]}`, false},
		{"keywords ok", Keywords, `{"greeting":["hi","hello"]}`, true},
		{"keywords not a list", Keywords, `{"greeting":"hi"}`, false},
		{"not json", Settings, `{`, false},
		{"not an object", Keywords, `[]`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.doc, []byte(tc.raw))
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		})
	}
}
