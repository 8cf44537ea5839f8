package headers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterStripsUnknownHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer secret-token")
	h.Set("Cookie", "sid=abc")
	h.Set("X-Forwarded-For", "10.0.0.1")
	h.Set("X-Correlation-ID", "corr-1")

	Filter(h)

	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "corr-1", h.Get("X-Correlation-ID"))
	assert.Empty(t, h.Get("Authorization"))
	assert.Empty(t, h.Get("Cookie"))
	assert.Empty(t, h.Get("X-Forwarded-For"))
}

func TestAllowedIsCaseInsensitive(t *testing.T) {
	assert.True(t, Allowed("accept"))
	assert.True(t, Allowed("ACCEPT-ENCODING"))
	assert.True(t, Allowed("x-correlation-id"))
	assert.False(t, Allowed("authorization"))
	assert.False(t, Allowed("cookie"))
}

func TestInjectOverwritesInboundValues(t *testing.T) {
	h := http.Header{}
	// Client attempts to smuggle identity headers.
	h.Set("userDocumentNumber", "99999999999")
	h.Set("userPermissions", "ADMIN")

	Inject(h, map[string]string{
		UserDocumentNumber: "12345678900",
		SessionID:          "s-1",
		Partner:            "prevcom",
	})

	assert.Equal(t, "12345678900", h.Get(UserDocumentNumber))
	assert.Equal(t, "s-1", h.Get(SessionID))
	assert.Equal(t, "prevcom", h.Get(Partner))
	// Not in the envelope map: inbound value must be deleted, not kept.
	assert.Empty(t, h.Get(UserPermissions))
}

func TestInjectOmitsEmptyOptionalFields(t *testing.T) {
	h := http.Header{}

	Inject(h, map[string]string{
		SessionID: "s-1",
		FundName:  "",
	})

	assert.Equal(t, "s-1", h.Get(SessionID))
	_, present := h[http.CanonicalHeaderKey(FundName)]
	assert.False(t, present)
}

func TestRewriteLeavesOnlyAllowListAndEnvelope(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Authorization", "Bearer tok")
	h.Set("X-Evil", "1")
	h.Set("fundId", "spoofed")

	Rewrite(h, map[string]string{
		SessionID: "s-7",
		Partner:   "btgmais",
		FundID:    "f-1",
	})

	for name := range h {
		onEnvelope := false
		for _, e := range Envelope {
			if http.CanonicalHeaderKey(e) == name {
				onEnvelope = true
				break
			}
		}
		assert.True(t, Allowed(name) || onEnvelope, "unexpected outbound header %q", name)
	}
	assert.Equal(t, "f-1", h.Get(FundID))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Empty(t, h.Get("Authorization"))
	assert.Empty(t, h.Get("X-Evil"))
}
