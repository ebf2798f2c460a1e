package restreamer

import (
	"context"
	"net/http"
)

// AddOutput attaches a new output to a running process. The URL embeds the
// stream key and must stay out of logs.
func (c *Client) AddOutput(ctx context.Context, processID, outputID, outputURL, videoFilter string) error {
	endpoint := "/api/v3/process/" + processID + "/outputs"
	req := addOutputRequest{ID: outputID, URL: outputURL, VideoFilter: videoFilter}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, nil); err != nil {
		return err
	}

	c.logger.Info("Added output", "process", processID, "output", outputID)
	return nil
}

// RemoveOutput detaches an output from a running process.
func (c *Client) RemoveOutput(ctx context.Context, processID, outputID string) error {
	endpoint := "/api/v3/process/" + processID + "/outputs/" + outputID
	if err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return err
	}

	c.logger.Info("Removed output", "process", processID, "output", outputID)
	return nil
}

// UpdateOutput replaces an output's URL and/or video filter in place.
func (c *Client) UpdateOutput(ctx context.Context, processID, outputID, outputURL, videoFilter string) error {
	endpoint := "/api/v3/process/" + processID + "/outputs/" + outputID
	req := updateOutputRequest{URL: outputURL, VideoFilter: videoFilter}
	if err := c.doRequest(ctx, http.MethodPut, endpoint, req, nil); err != nil {
		return err
	}

	c.logger.Info("Updated output", "process", processID, "output", outputID)
	return nil
}

// ListOutputs returns the ids of all outputs attached to a process.
func (c *Client) ListOutputs(ctx context.Context, processID string) ([]string, error) {
	var resp outputsResponse
	endpoint := "/api/v3/process/" + processID + "/outputs"
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Outputs))
	for _, output := range resp.Outputs {
		ids = append(ids, output.ID)
	}
	return ids, nil
}

// UpdateOutputEncoding pushes new encoder settings for one output. Only
// fields with positive values are sent; bitrates are converted from kbit/s
// to bit/s on the wire.
func (c *Client) UpdateOutputEncoding(ctx context.Context, processID, outputID string, params EncodingParams) error {
	req := encodingRequest{
		Preset:  params.Preset,
		Profile: params.Profile,
	}
	if params.VideoBitrateKbps > 0 {
		req.VideoBitrate = params.VideoBitrateKbps * 1000
	}
	if params.AudioBitrateKbps > 0 {
		req.AudioBitrate = params.AudioBitrateKbps * 1000
	}
	if params.Width > 0 && params.Height > 0 {
		req.Resolution = &resolutionSpec{Width: params.Width, Height: params.Height}
	}
	if params.FPSNum > 0 && params.FPSDen > 0 {
		req.FPS = &rationalSpec{Num: params.FPSNum, Den: params.FPSDen}
	}

	endpoint := "/api/v3/process/" + processID + "/outputs/" + outputID + "/encoding"
	if err := c.doRequest(ctx, http.MethodPut, endpoint, req, nil); err != nil {
		return err
	}

	c.logger.Info("Updated output encoding", "process", processID, "output", outputID)
	return nil
}

// GetOutputEncoding reads back the encoder settings for one output,
// converting wire bit/s values to kbit/s.
func (c *Client) GetOutputEncoding(ctx context.Context, processID, outputID string) (*EncodingParams, error) {
	var resp struct {
		VideoBitrate int             `json:"video_bitrate"`
		AudioBitrate int             `json:"audio_bitrate"`
		Resolution   *resolutionSpec `json:"resolution"`
		FPS          *rationalSpec   `json:"fps"`
		Preset       string          `json:"preset"`
		Profile      string          `json:"profile"`
	}
	endpoint := "/api/v3/process/" + processID + "/outputs/" + outputID + "/encoding"
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	params := EncodingParams{
		VideoBitrateKbps: resp.VideoBitrate / 1000,
		AudioBitrateKbps: resp.AudioBitrate / 1000,
		Preset:           resp.Preset,
		Profile:          resp.Profile,
	}
	if resp.Resolution != nil {
		params.Width = resp.Resolution.Width
		params.Height = resp.Resolution.Height
	}
	if resp.FPS != nil {
		params.FPSNum = resp.FPS.Num
		params.FPSDen = resp.FPS.Den
	}
	return &params, nil
}
