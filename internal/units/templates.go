package units

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Template is a reusable destination preset. Builtin templates are seeded
// at startup and cannot be deleted; custom templates persist to disk.
type Template struct {
	ID          string           `toml:"id" json:"id"`
	Name        string           `toml:"name" json:"name"`
	Platform    Platform         `toml:"platform" json:"platform"`
	Orientation Orientation      `toml:"orientation" json:"orientation"`
	Encoding    EncodingSettings `toml:"encoding" json:"encoding"`
	Builtin     bool             `toml:"-" json:"builtin"`
}

func builtinTemplate(id, name string, platform Platform, orientation Orientation, bitrateKbps, width, height int) Template {
	return Template{
		ID:          id,
		Name:        name,
		Platform:    platform,
		Orientation: orientation,
		Builtin:     true,
		Encoding: EncodingSettings{
			VideoBitrateKbps: bitrateKbps,
			AudioBitrateKbps: 128,
			Width:            width,
			Height:           height,
		},
	}
}

// builtinTemplates returns the fixed preset catalog in display order.
func builtinTemplates() []Template {
	return []Template{
		builtinTemplate("builtin_youtube_1080p60", "YouTube 1080p60", PlatformYouTube, OrientationHorizontal, 6000, 1920, 1080),
		builtinTemplate("builtin_youtube_720p60", "YouTube 720p60", PlatformYouTube, OrientationHorizontal, 4500, 1280, 720),
		builtinTemplate("builtin_twitch_1080p60", "Twitch 1080p60", PlatformTwitch, OrientationHorizontal, 6000, 1920, 1080),
		builtinTemplate("builtin_twitch_720p60", "Twitch 720p60", PlatformTwitch, OrientationHorizontal, 4500, 1280, 720),
		builtinTemplate("builtin_facebook_1080p", "Facebook 1080p", PlatformFacebook, OrientationHorizontal, 4000, 1920, 1080),
		builtinTemplate("builtin_tiktok_vertical", "TikTok Vertical", PlatformTikTok, OrientationVertical, 3000, 1080, 1920),
	}
}

func generateTemplateID() string {
	return fmt.Sprintf("tmpl_%d_%06x", time.Now().Unix(), rand.Uint32()&0xffffff)
}

// TemplateCreateParams contains parameters for creating a custom template.
type TemplateCreateParams struct {
	Name        string
	Platform    Platform
	Orientation Orientation
	Encoding    EncodingSettings
}

// ListTemplates returns builtin templates followed by custom ones in
// creation order.
func (s *Service) ListTemplates() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, 0, len(s.templates))
	out = append(out, s.templates...)
	return out
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.templates {
		if s.templates[i].ID == id {
			tmpl := s.templates[i]
			return &tmpl, nil
		}
	}
	return nil, NewUnitError(ErrCodeNotFound, fmt.Sprintf("template not found: %s", id), nil)
}

// CreateTemplate adds a custom template and persists it.
func (s *Service) CreateTemplate(params TemplateCreateParams) (*Template, error) {
	if params.Name == "" {
		return nil, NewUnitError(ErrCodeValidation, "template name is required", nil)
	}
	if !params.Platform.Valid() {
		return nil, NewUnitError(ErrCodeValidation, fmt.Sprintf("unknown platform: %s", params.Platform), nil)
	}

	tmpl := Template{
		ID:          generateTemplateID(),
		Name:        params.Name,
		Platform:    params.Platform,
		Orientation: params.Orientation,
		Encoding:    params.Encoding,
	}
	if tmpl.Orientation == "" {
		tmpl.Orientation = OrientationAuto
	}

	s.mu.Lock()
	s.templates = append(s.templates, tmpl)
	s.mu.Unlock()

	if err := s.persistTemplates(); err != nil {
		s.logger.Error("Failed to persist templates", "error", err)
	}

	s.logger.Info("Created custom template", "template_id", tmpl.ID, "name", tmpl.Name)
	return &tmpl, nil
}

// DeleteTemplate removes a custom template. Builtin templates are refused.
func (s *Service) DeleteTemplate(id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.templates {
		if s.templates[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return NewUnitError(ErrCodeNotFound, fmt.Sprintf("template not found: %s", id), nil)
	}
	if s.templates[idx].Builtin {
		name := s.templates[idx].Name
		s.mu.Unlock()
		return NewUnitError(ErrCodeConflict, fmt.Sprintf("cannot delete built-in template: %s", name), nil)
	}
	s.templates = append(s.templates[:idx], s.templates[idx+1:]...)
	s.mu.Unlock()

	if err := s.persistTemplates(); err != nil {
		s.logger.Error("Failed to persist templates", "error", err)
	}

	s.logger.Info("Deleted custom template", "template_id", id)
	return nil
}

// AddDestinationFromTemplate creates a destination on a unit from a
// template plus the caller's stream key.
func (s *Service) AddDestinationFromTemplate(unitID, templateID, streamKey string) (*Destination, error) {
	tmpl, err := s.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	return s.AddDestination(unitID, DestinationCreateParams{
		Platform:          tmpl.Platform,
		StreamKey:         streamKey,
		TargetOrientation: tmpl.Orientation,
		Encoding:          &tmpl.Encoding,
	})
}

// customTemplates returns the non-builtin templates for persistence.
// Caller must hold at least a read lock.
func (s *Service) customTemplatesLocked() []Template {
	var out []Template
	for _, tmpl := range s.templates {
		if !tmpl.Builtin {
			out = append(out, tmpl)
		}
	}
	return out
}

func (s *Service) persistTemplates() error {
	if s.store == nil {
		return nil
	}
	s.mu.RLock()
	custom := s.customTemplatesLocked()
	s.mu.RUnlock()
	return s.store.SaveTemplates(custom)
}
