package timeparse

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

type IParser interface {
	// Parse resolves a natural-language time expression relative to base. The bool is false when
	// nothing in text could be read as a time.
	Parse(text string, base time.Time) (time.Time, bool)
}

type parser struct {
	w *when.Parser
}

func New() IParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	return &parser{w: w}
}

func (p *parser) Parse(text string, base time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	r, err := p.w.Parse(text, base.UTC())
	if err != nil || r == nil {
		return time.Time{}, false
	}

	return r.Time.UTC().Truncate(time.Minute), true
}
