package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	r := NewRequest("http://example.org/", "", TypeOther, nil)
	assert.Equal(t, "example.org", r.Hostname)
	assert.Equal(t, "example.org", r.Domain)
	assert.Equal(t, "http://example.org/", r.URL)
	assert.Equal(t, "", r.SourceHostname)
	assert.Equal(t, "", r.SourceDomain)
	assert.Equal(t, TypeOther, r.RequestType)
	assert.False(t, r.ThirdParty)

	r = NewRequest("http://example.org/", "http://sub.example.org", TypeOther, nil)
	assert.Equal(t, "sub.example.org", r.SourceHostname)
	assert.Equal(t, "example.org", r.SourceDomain)
	assert.False(t, r.ThirdParty)

	r = NewRequest("http://example.org.uk/", "http://sub.example.org.uk", TypeOther, nil)
	assert.Equal(t, "example.org.uk", r.Hostname)
	assert.Equal(t, "example.org.uk", r.Domain)
	assert.Equal(t, "sub.example.org.uk", r.SourceHostname)
	assert.Equal(t, "example.org.uk", r.SourceDomain)
	assert.False(t, r.ThirdParty)

	r = NewRequest("http://example.org.uk/", "http://sub.example.com", TypeOther, nil)
	assert.Equal(t, "example.com", r.SourceDomain)
	assert.True(t, r.ThirdParty)

	r = NewRequest("HTTP://EXAMPLE.org/Path", "", TypeOther, nil)
	assert.Equal(t, "example.org", r.Hostname)
	assert.Equal(t, "HTTP://EXAMPLE.org/Path", r.URL)
	assert.Equal(t, "http://example.org/path", r.URLLowerCase)
}

func TestNewRequest_longURL(t *testing.T) {
	t.Parallel()

	url := "https://example.org/" + strings.Repeat("a", 2*maxURLLength)
	r := NewRequest(url, url, TypeOther, nil)

	assert.Len(t, r.URL, maxURLLength)
	assert.Equal(t, "example.org", r.Hostname)
	assert.Equal(t, "example.org", r.SourceHostname)
}

func TestNewPreparsedRequest(t *testing.T) {
	t.Parallel()

	r := NewPreparsedRequest(
		"https://ads.example.com/banner.png",
		"Ads.Example.COM",
		"www.example.org",
		TypeImage,
		true,
		nil,
	)

	assert.Equal(t, "ads.example.com", r.Hostname)
	assert.Equal(t, "example.com", r.Domain)
	assert.Equal(t, "www.example.org", r.SourceHostname)
	assert.Equal(t, "example.org", r.SourceDomain)
	assert.Equal(t, TypeImage, r.RequestType)
	assert.True(t, r.ThirdParty)

	// The host's decision is trusted.
	r = NewPreparsedRequest("https://a.example.com/", "a.example.com", "b.example.net", TypeOther, false, nil)
	assert.False(t, r.ThirdParty)
}

func TestParseRequestType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want RequestType
	}{
		{in: "main_frame", want: TypeDocument},
		{in: "document", want: TypeDocument},
		{in: "sub_frame", want: TypeSubdocument},
		{in: "script", want: TypeScript},
		{in: "stylesheet", want: TypeStylesheet},
		{in: "image", want: TypeImage},
		{in: "imageset", want: TypeImage},
		{in: "xhr", want: TypeXmlhttprequest},
		{in: "fetch", want: TypeXmlhttprequest},
		{in: "media", want: TypeMedia},
		{in: "font", want: TypeFont},
		{in: "websocket", want: TypeWebsocket},
		{in: "beacon", want: TypePing},
		{in: "csp_report", want: TypeCSPReport},
		{in: "object", want: TypeObject},
		{in: "unknown", want: TypeOther},
		{in: "", want: TypeOther},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseRequestType(tc.in), tc.in)
	}
}

func TestRequestType_Count(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, TypeDocument.Count())
	assert.Equal(t, 2, (TypeDocument | TypeOther).Count())
}
