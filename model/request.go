package model

// FileUpload carries the metadata and content of one attached file.
type FileUpload struct {
	Filename     string
	DeclaredMIME string
	Size         int64
	Content      []byte
}

// RequestDescriptor is the normalized view of one inbound request, built by
// the framework adapter before any handler executes and discarded afterwards.
type RequestDescriptor struct {
	Subject   string
	Tier      UserTier
	Endpoint  EndpointClass
	Method    string
	Files     []FileUpload
	CSRFToken string
}

func (r *RequestDescriptor) HasFiles() bool {
	return len(r.Files) > 0
}

// IsMutating reports whether the request method can change server state and
// therefore requires CSRF validation.
func (r *RequestDescriptor) IsMutating() bool {
	switch r.Method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}
