package confluence

// Page is a Confluence content item as returned by the REST API.
// The body, version and ancestors fields are only populated when the
// corresponding expand parameters were requested.
type Page struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Title     string     `json:"title"`
	Version   Version    `json:"version"`
	Body      *Body      `json:"body,omitempty"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
	Children  *Children  `json:"children,omitempty"`
	Links     Links      `json:"_links"`
}

// Version carries the monotonic per-page version number. It increases
// strictly on every remote edit.
type Version struct {
	Number int    `json:"number"`
	When   string `json:"when,omitempty"`
}

// Body holds the storage-format representation of a page body.
type Body struct {
	Storage *Storage `json:"storage,omitempty"`
}

// Storage is the raw storage-format markup of a page.
type Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// Ancestor is one entry of a page's root-to-parent ancestor chain.
// Only the identifier and title are used; ancestors are never persisted.
type Ancestor struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Children carries the expanded child summaries used as hints.
type Children struct {
	Attachment *AttachmentSummary `json:"attachment,omitempty"`
}

// AttachmentSummary is the attachment-count hint returned by the
// children.attachment expand. The size is advisory only.
type AttachmentSummary struct {
	Size int `json:"size"`
}

// Links holds the hypermedia links of a content item.
type Links struct {
	WebUI    string `json:"webui,omitempty"`
	Download string `json:"download,omitempty"`
	Self     string `json:"self,omitempty"`
}

// StorageValue returns the raw storage-format body, or empty if the body
// was not expanded.
func (p *Page) StorageValue() string {
	if p.Body == nil || p.Body.Storage == nil {
		return ""
	}
	return p.Body.Storage.Value
}

// AttachmentHint returns the attachment-count hint and whether it is
// known. An unknown hint must be treated as "may have attachments".
func (p *Page) AttachmentHint() (int, bool) {
	if p.Children == nil || p.Children.Attachment == nil {
		return 0, false
	}
	return p.Children.Attachment.Size, true
}

// Attachment is a binary file attached to a page.
type Attachment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Metadata  Metadata  `json:"metadata"`
	Extension Extension `json:"extensions"`
	Links     Links     `json:"_links"`
}

// Metadata holds attachment metadata.
type Metadata struct {
	MediaType string `json:"mediaType"`
}

// Extension holds attachment extension fields.
type Extension struct {
	FileSize int64 `json:"fileSize"`
}

// SearchResult is one page of a CQL content search.
type SearchResult struct {
	Results   []Page `json:"results"`
	Start     int    `json:"start"`
	Limit     int    `json:"limit"`
	Size      int    `json:"size"`
	TotalSize int    `json:"totalSize"`
}

// attachmentList is the response of the child/attachment endpoint.
type attachmentList struct {
	Results []Attachment `json:"results"`
	Size    int          `json:"size"`
}

// User is the identity returned by the current-user endpoint, used for
// connection testing only.
type User struct {
	Type        string `json:"type"`
	Username    string `json:"username,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}
