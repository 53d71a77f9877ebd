package rules

import (
	"math/bits"
	"strings"

	"github.com/AdguardTeam/blockengine/internal/ufnet"
)

// maxURLLength limits the URL length by 4 KiB. It appears that there
// can be URLs longer than a megabyte, and it makes no sense to go
// through the whole URL.
const maxURLLength = 4 * 1024

// RequestType is the request types enumeration
type RequestType uint32

const (
	// TypeDocument (main frame)
	TypeDocument RequestType = 1 << iota
	// TypeSubdocument (iframe) $subdocument
	TypeSubdocument
	// TypeScript (javascript, etc) $script
	TypeScript
	// TypeStylesheet (css) $stylesheet
	TypeStylesheet
	// TypeObject (flash, etc) $object
	TypeObject
	// TypeImage (any image) $image
	TypeImage
	// TypeXmlhttprequest (ajax/fetch) $xmlhttprequest
	TypeXmlhttprequest
	// TypeMedia (video/music) $media
	TypeMedia
	// TypeFont (any custom font) $font
	TypeFont
	// TypeWebsocket (a websocket connection) $websocket
	TypeWebsocket
	// TypePing (navigator.sendBeacon() or ping attribute on links) $ping
	TypePing
	// TypeCSPReport (content security policy violation reports) $csp_report
	TypeCSPReport
	// TypeOther - any other request type
	TypeOther
)

// Count returns the count of the enabled flags.
func (t RequestType) Count() int {
	return bits.OnesCount32(uint32(t))
}

// ParseRequestType converts a request category string, as reported by the
// browser, into a [RequestType].  Unknown categories are reported as
// [TypeOther].
func ParseRequestType(s string) (t RequestType) {
	switch s {
	case "beacon", "ping":
		return TypePing
	case "csp_report":
		return TypeCSPReport
	case "document", "main_frame":
		return TypeDocument
	case "font":
		return TypeFont
	case "image", "imageset":
		return TypeImage
	case "media":
		return TypeMedia
	case "object", "object_subrequest":
		return TypeObject
	case "script":
		return TypeScript
	case "stylesheet":
		return TypeStylesheet
	case "sub_frame", "subdocument":
		return TypeSubdocument
	case "websocket":
		return TypeWebsocket
	case "xhr", "xmlhttprequest", "fetch":
		return TypeXmlhttprequest
	default:
		return TypeOther
	}
}

// Request represents a web filtering request with all it's necessary
// properties.
type Request struct {
	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// Hostname is the hostname to filter.
	Hostname string

	// Domain is the registrable domain of Hostname as reported by the
	// [DomainResolver].  It is never empty if Hostname is not empty.
	Domain string

	// SourceHostname is the hostname of the page that initiated the request.
	SourceHostname string

	// SourceDomain is the registrable domain of SourceHostname.
	SourceDomain string

	// RequestType is the type of the filtering request.
	RequestType RequestType

	// ThirdParty is true if the filtering request should consider $third-party
	// modifier.
	ThirdParty bool
}

// NewRequest creates a new instance of "Request" and populates it's fields
// from the request and source URLs.  The third-party flag is computed by
// comparing the registrable domains returned by res.  If res is nil,
// [PublicSuffixResolver] is used.
func NewRequest(url, sourceURL string, requestType RequestType, res DomainResolver) (r *Request) {
	if len(sourceURL) > maxURLLength {
		sourceURL = sourceURL[:maxURLLength]
	}

	hostname := ufnet.ExtractHostname(url)
	sourceHostname := ufnet.ExtractHostname(sourceURL)

	r = NewPreparsedRequest(url, hostname, sourceHostname, requestType, false, res)
	r.ThirdParty = r.SourceDomain != "" && r.SourceDomain != r.Domain

	return r
}

// NewPreparsedRequest creates a new instance of [Request] from fields that the
// host has already parsed.  thirdParty is trusted as is.  If res is nil,
// [PublicSuffixResolver] is used.
func NewPreparsedRequest(
	url string,
	hostname string,
	sourceHostname string,
	requestType RequestType,
	thirdParty bool,
	res DomainResolver,
) (r *Request) {
	if len(url) > maxURLLength {
		url = url[:maxURLLength]
	}

	if res == nil {
		res = PublicSuffixResolver{}
	}

	hostname = strings.ToLower(hostname)
	sourceHostname = strings.ToLower(sourceHostname)

	return &Request{
		URL:            url,
		URLLowerCase:   strings.ToLower(url),
		Hostname:       hostname,
		Domain:         RegistrableDomain(res, hostname),
		SourceHostname: sourceHostname,
		SourceDomain:   RegistrableDomain(res, sourceHostname),
		RequestType:    requestType,
		ThirdParty:     thirdParty,
	}
}
