package cv

// Template describes a reference image to look for in captured frames
type Template struct {
	Name      string
	Path      string
	Threshold float64
	Region    *Region
	Scale     float64
	Method    MatchMethod
}

// MatchConfig builds a matching config from the template's own settings
func (t Template) MatchConfig() *MatchConfig {
	cfg := DefaultMatchConfig()
	cfg.Method = t.Method
	if t.Threshold > 0 {
		cfg.Threshold = t.Threshold
	}
	if t.Region != nil {
		cfg.SearchRegion = t.Region.ToImageRectangle()
	}
	return cfg
}

// InRegion sets the search region for the template
func (t Template) InRegion(x1, y1, x2, y2 int) Template {
	region := NewRegion(x1, y1, x2, y2)
	t.Region = &region
	return t
}

// WithThreshold sets the matching threshold
func (t Template) WithThreshold(threshold float64) Template {
	t.Threshold = threshold
	return t
}

// WithScale sets the scale factor
func (t Template) WithScale(scale float64) Template {
	t.Scale = scale
	return t
}

// WithMethod sets the matching method
func (t Template) WithMethod(m MatchMethod) Template {
	t.Method = m
	return t
}
