package lsp

import (
	"github.com/spf13/cast"

	"astrols/internal/diag"
	"astrols/internal/diagnostics"
)

// settings are decoded loosely: clients send numbers as strings and
// booleans as "true" often enough.
type settings struct {
	render         *diagnostics.Render
	traceLSP       *bool
	maxDiagnostics *int
	rules          []diagnostics.Rule
	hasRules       bool
}

func parseSettings(raw any) (settings, error) {
	var out settings
	if raw == nil {
		return out, nil
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return out, err
	}
	if nested, ok := m["astrols"]; ok {
		if m, err = cast.ToStringMapE(nested); err != nil {
			return out, err
		}
	}
	if v, ok := m["render"]; ok {
		r, err := diagnostics.ParseRender(cast.ToString(v))
		if err != nil {
			return out, err
		}
		out.render = &r
	}
	if v, ok := m["trace"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return out, err
		}
		out.traceLSP = &b
	}
	if v, ok := m["maxDiagnostics"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return out, err
		}
		out.maxDiagnostics = &n
	}
	if v, ok := m["suppress"]; ok {
		out.hasRules = true
		for _, item := range cast.ToSlice(v) {
			rm, err := cast.ToStringMapE(item)
			if err != nil {
				return out, err
			}
			out.rules = append(out.rules, diagnostics.Rule{
				Code: diag.Code(cast.ToInt(rm["code"])),
				When: cast.ToString(rm["when"]),
			})
		}
	}
	return out, nil
}

func (s *Server) applySettings(raw any) {
	st, err := parseSettings(raw)
	if err != nil {
		s.logf("ignoring settings: %v", err)
		return
	}
	s.mu.Lock()
	if st.traceLSP != nil {
		s.traceLSP = *st.traceLSP
	}
	if st.maxDiagnostics != nil && *st.maxDiagnostics > 0 {
		s.maxDiagnostics = *st.maxDiagnostics
	}
	filter := s.filter
	if st.render != nil {
		filter.Render = *st.render
	}
	if st.hasRules {
		filter.Rules = st.rules
	}
	b := s.bridge
	s.mu.Unlock()

	if b == nil || (st.render == nil && !st.hasRules) {
		return
	}
	if err := b.SetFilter(filter); err != nil {
		s.logf("ignoring filter settings: %v", err)
		return
	}
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	s.scheduleDiagnostics()
}
