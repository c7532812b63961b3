package model

// Frame is a single sampled frame of the source video.
type Frame struct {
	ID        string  `json:"frame_id"`
	Path      string  `json:"path,omitempty"`
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"` // seconds from the start of the video
}

// Ref returns the reference recorded as evidence: the image path when known, else the ID.
func (f Frame) Ref() string {
	if f.Path != "" {
		return f.Path
	}
	return f.ID
}

// Detection is a single labeled object seen in a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FrameObservation is everything the observers reported about one frame.
type FrameObservation struct {
	Narrative  string      `json:"narrative"`
	Detections []Detection `json:"detections"`
	Frame
	// Degraded is set when an observer failed and its signal was substituted.
	Degraded bool `json:"degraded,omitempty"`
}

// Labels returns the distinct detection labels of the observation.
func (o FrameObservation) Labels() []string {
	seen := make(map[string]struct{}, len(o.Detections))
	labels := make([]string, 0, len(o.Detections))
	for _, d := range o.Detections {
		if d.Label == "" {
			continue
		}
		if _, ok := seen[d.Label]; ok {
			continue
		}
		seen[d.Label] = struct{}{}
		labels = append(labels, d.Label)
	}
	return labels
}
