package oauth

// Declaration describes the OAuth token endpoint a plugin authenticates against.
// A zero Declaration means the plugin does not use OAuth.
type Declaration struct {
	Provider string
	TokenURL string
	Scope    string
}

func (d Declaration) Enabled() bool {
	return d.Provider != ""
}
