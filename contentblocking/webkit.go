package contentblocking

// Rule is a single WebKit content-blocker rule.
type Rule struct {
	Trigger Trigger `json:"trigger"`
	Action  Action  `json:"action"`
}

// Trigger defines which loads a [Rule] applies to.
type Trigger struct {
	URLFilter                string   `json:"url-filter"`
	URLFilterIsCaseSensitive bool     `json:"url-filter-is-case-sensitive,omitempty"`
	IfDomain                 []string `json:"if-domain,omitempty"`
	UnlessDomain             []string `json:"unless-domain,omitempty"`
	ResourceType             []string `json:"resource-type,omitempty"`
	LoadType                 []string `json:"load-type,omitempty"`
}

// Action defines what happens to a load matching a [Trigger].
type Action struct {
	Type string `json:"type"`
}

// Action types.
const (
	ActionTypeBlock               = "block"
	ActionTypeIgnorePreviousRules = "ignore-previous-rules"
)

// Resource types.
const (
	ResourceTypeDocument   = "document"
	ResourceTypeFont       = "font"
	ResourceTypeImage      = "image"
	ResourceTypeMedia      = "media"
	ResourceTypeRaw        = "raw"
	ResourceTypeScript     = "script"
	ResourceTypeStyleSheet = "style-sheet"
)

// Load types.
const (
	LoadTypeFirstParty = "first-party"
	LoadTypeThirdParty = "third-party"
)

// urlFilterAny is the url-filter matching every URL.
const urlFilterAny = ".*"

// ignoreFirstPartyDocuments is the rule that always closes the list, so that
// top-level navigations to the page itself are never blocked.
func ignoreFirstPartyDocuments() (r *Rule) {
	return &Rule{
		Trigger: Trigger{
			URLFilter:    urlFilterAny,
			ResourceType: []string{ResourceTypeDocument},
			LoadType:     []string{LoadTypeFirstParty},
		},
		Action: Action{
			Type: ActionTypeIgnorePreviousRules,
		},
	}
}
