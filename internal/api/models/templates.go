package models

// TemplateData is a reusable destination preset.
type TemplateData struct {
	ID          string       `json:"id" example:"builtin_youtube_1080p60" doc:"Template identifier"`
	Name        string       `json:"name" example:"YouTube 1080p60" doc:"Display name"`
	Platform    string       `json:"platform" example:"youtube" doc:"Target platform"`
	Orientation string       `json:"orientation" example:"horizontal" doc:"Target orientation"`
	Encoding    EncodingData `json:"encoding" doc:"Encoder settings the template applies"`
	Builtin     bool         `json:"builtin" example:"true" doc:"Whether the template is a builtin preset"`
}

type TemplateListData struct {
	Templates []TemplateData `json:"templates" doc:"Builtin presets followed by custom templates"`
	Count     int            `json:"count" example:"7" doc:"Number of templates"`
}

type TemplateListResponse struct {
	Body TemplateListData
}

type TemplateResponse struct {
	Body TemplateData
}

// TemplateCreateRequestData contains the fields for a custom template.
type TemplateCreateRequestData struct {
	Name        string       `json:"name" minLength:"1" maxLength:"100" example:"My 720p30" doc:"Display name"`
	Platform    string       `json:"platform" example:"twitch" doc:"Target platform"`
	Orientation string       `json:"orientation,omitempty" example:"horizontal" doc:"Target orientation, defaults to auto"`
	Encoding    EncodingData `json:"encoding,omitempty" doc:"Encoder settings"`
}

type TemplateCreateRequest struct {
	Body TemplateCreateRequestData
}

// FromTemplateRequestData applies a template to a unit as a new destination.
type FromTemplateRequestData struct {
	TemplateID string `json:"template_id" minLength:"1" example:"builtin_youtube_1080p60" doc:"Template to apply"`
	StreamKey  string `json:"stream_key" minLength:"1" example:"live_123456" doc:"Stream key for the new destination"`
}
